package microstudio

import (
	"MicroStudioLink/internal/core/domain"
	"context"
)

// callInto performs a call and decodes the accepted response into v.
func (c *Client) callInto(ctx context.Context, kind RequestKind, payload Payload, v interface{}) error {
	msg, err := c.Call(ctx, kind, payload)
	if err != nil {
		return err
	}
	return msg.Into(v)
}

// ListProjects returns the projects of the logged-in user.
func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var resp ProjectList
	if err := c.callInto(ctx, RequestProjectList, nil, &resp); err != nil {
		return nil, err
	}
	return resp.List, nil
}

// PublicPlugins lists published plugins.
func (c *Client) PublicPlugins(ctx context.Context) ([]domain.PublicPackage, error) {
	var resp PublicPlugins
	if err := c.callInto(ctx, RequestPublicPlugins, nil, &resp); err != nil {
		return nil, err
	}
	return resp.List, nil
}

// PublicLibraries lists published libraries.
func (c *Client) PublicLibraries(ctx context.Context) ([]domain.PublicPackage, error) {
	var resp PublicLibraries
	if err := c.callInto(ctx, RequestPublicLibraries, nil, &resp); err != nil {
		return nil, err
	}
	return resp.List, nil
}

// BuildStatus reports the export build of a project for a target such as "windows".
func (c *Client) BuildStatus(ctx context.Context, projectID int64, target string) (domain.BuildStatus, error) {
	var resp BuildStatusReport
	err := c.callInto(ctx, RequestBuildStatus, Payload{"project": projectID, "target": target}, &resp)
	return resp.BuildStatus, err
}

// ListProjectFiles lists a project folder such as "ms", "sprites" or "maps".
func (c *Client) ListProjectFiles(ctx context.Context, projectID int64, folder string) ([]domain.ProjectFile, error) {
	var resp ProjectFiles
	if err := c.callInto(ctx, RequestListProjectFiles, Payload{"project": projectID, "folder": folder}, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// ReadProjectFile returns a file's content. Binary files come back base64-encoded.
func (c *Client) ReadProjectFile(ctx context.Context, projectID int64, file string) (string, error) {
	var resp FileContent
	if err := c.callInto(ctx, RequestReadProjectFile, Payload{"project": projectID, "file": file}, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// WriteProjectFile stores content at file. Binary content must be base64-encoded.
func (c *Client) WriteProjectFile(ctx context.Context, projectID int64, file, content string, properties map[string]interface{}) (domain.FileWrite, error) {
	if properties == nil {
		properties = map[string]interface{}{}
	}
	var resp FileWritten
	err := c.callInto(ctx, RequestWriteProjectFile, Payload{
		"project":    projectID,
		"file":       file,
		"properties": properties,
		"content":    content,
	}, &resp)
	return resp.FileWrite, err
}

// Ping round-trips a ping/pong pair.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Call(ctx, RequestPing, nil)
	return err
}
