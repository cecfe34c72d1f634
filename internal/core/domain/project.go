package domain

// OwnerInfo identifies a MicroStudio user attached to a project.
type OwnerInfo struct {
	ID   int64  `json:"id"`
	Nick string `json:"nick"`
}

// Project is one entry of the user's project list.
type Project struct {
	ID           int64                  `json:"id"`
	Owner        OwnerInfo              `json:"owner"`
	Title        string                 `json:"title"`
	Slug         string                 `json:"slug"`
	Code         string                 `json:"code"`
	Description  string                 `json:"description"`
	Tags         []string               `json:"tags"`
	Flags        map[string]interface{} `json:"flags"`
	Poster       bool                   `json:"poster"`
	Platforms    []string               `json:"platforms"`
	Controls     []string               `json:"controls"`
	Type         string                 `json:"type"`
	Orientation  string                 `json:"orientation"`
	Aspect       string                 `json:"aspect"`
	Graphics     string                 `json:"graphics"`
	Language     string                 `json:"language"`
	Libs         []string               `json:"libs"`
	Properties   map[string]interface{} `json:"properties"`
	DateCreated  int64                  `json:"date_created"`
	LastModified int64                  `json:"last_modified"`
	Public       bool                   `json:"public"`
	Size         int64                  `json:"size"`
	Users        []OwnerInfo            `json:"users"`
}

// PublicPackage is a published plugin or library. Both listings share the shape.
type PublicPackage struct {
	ID            int64                  `json:"id"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Poster        bool                   `json:"poster"`
	Type          string                 `json:"type"`
	Tags          []string               `json:"tags"`
	Flags         map[string]interface{} `json:"flags"`
	Slug          string                 `json:"slug"`
	Owner         string                 `json:"owner"`
	Likes         int                    `json:"likes"`
	Liked         bool                   `json:"liked"`
	DatePublished int64                  `json:"date_published"`
	LastModified  int64                  `json:"last_modified"`
	Graphics      string                 `json:"graphics"`
	Language      string                 `json:"language"`
	Networking    bool                   `json:"networking,omitempty"`
}

// ProjectFile describes one file returned by a folder listing.
type ProjectFile struct {
	File       string                 `json:"file"`
	Version    int                    `json:"version"`
	Size       int64                  `json:"size"`
	Properties map[string]interface{} `json:"properties"`
}

// BuildStatus is the state of an export build for a target.
type BuildStatus struct {
	Build        interface{} `json:"build"`
	ActiveTarget bool        `json:"active_target"`
}

// FileWrite is the server's acknowledgement of a file write.
type FileWrite struct {
	Version int   `json:"version"`
	Size    int64 `json:"size"`
}
