package main

import (
	"MicroStudioLink/internal/core/domain"
	"MicroStudioLink/internal/core/ports"
	"MicroStudioLink/internal/core/service"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/pterm/pterm"
)

var errNotLoggedIn = errors.New("not logged in: run `microstudio login` or set MICROSTUDIO_NICK and MICROSTUDIO_PASSWORD")

// studioService is the part of service.Studio the commands use.
type studioService interface {
	Login(ctx context.Context, nick, password string) error
	Resume(ctx context.Context, fallback domain.Credentials) error
	Logout(ctx context.Context) error
	Close()
	Client() (ports.StudioClient, error)
	ListProjects(ctx context.Context, refresh bool) ([]domain.Project, error)
	SelectProject(ctx context.Context, id int64) (domain.Project, error)
	CurrentProject(ctx context.Context) (domain.Project, error)
}

var _ studioService = (*service.Studio)(nil)

// StudioCmd implements the session and project commands.
type StudioCmd struct {
	studio   studioService
	fallback domain.Credentials
	out      io.Writer
}

// session returns a ready client: the live one, the stored token, or the
// configured credentials, in that order.
func (c StudioCmd) session(ctx context.Context) (ports.StudioClient, error) {
	if client, err := c.studio.Client(); err == nil {
		return client, nil
	}
	err := c.studio.Resume(ctx, c.fallback)
	if errors.Is(err, service.ErrNoStoredToken) {
		if c.fallback.Nick == "" || c.fallback.Password == "" {
			return nil, errNotLoggedIn
		}
		err = c.studio.Login(ctx, c.fallback.Nick, c.fallback.Password)
	}
	if err != nil {
		return nil, err
	}
	return c.studio.Client()
}

// project resolves an explicit --project id or the selected project.
func (c StudioCmd) project(ctx context.Context, id int64) (int64, error) {
	if id > 0 {
		return id, nil
	}
	current, err := c.studio.CurrentProject(ctx)
	if err != nil {
		if errors.Is(err, service.ErrNoProjectSelected) {
			return 0, fmt.Errorf("%w: pass --project or run `microstudio select <id>`", err)
		}
		return 0, err
	}
	return current.ID, nil
}

func (c StudioCmd) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// LoginInput holds input for logging in.
type LoginInput struct {
	Nick     string
	Password string
}

// Login opens a session with credentials and stores its token.
func (c StudioCmd) Login(ctx context.Context, in LoginInput) error {
	if in.Nick == "" {
		in.Nick = c.fallback.Nick
	}
	if in.Password == "" {
		in.Password = c.fallback.Password
	}
	if in.Nick == "" || in.Password == "" {
		return errors.New("nick and password are required")
	}
	if err := c.studio.Login(ctx, in.Nick, in.Password); err != nil {
		return err
	}
	client, err := c.studio.Client()
	if err != nil {
		return err
	}
	pterm.Success.Printf("Logged in as %s\n", client.Nick())
	return nil
}

// Logout forgets the stored session.
func (c StudioCmd) Logout(ctx context.Context) error {
	if err := c.studio.Logout(ctx); err != nil {
		return err
	}
	pterm.Success.Println("Logged out")
	return nil
}

// ProjectsInput holds input for listing projects.
type ProjectsInput struct {
	Refresh bool
	Output  string
}

// Projects lists the user's projects, marking the selected one.
func (c StudioCmd) Projects(ctx context.Context, in ProjectsInput) error {
	if _, err := c.session(ctx); err != nil {
		return err
	}
	projects, err := c.studio.ListProjects(ctx, in.Refresh)
	if err != nil {
		return err
	}
	if in.Output == "json" {
		return c.printJSON(projects)
	}
	if len(projects) == 0 {
		pterm.Info.Println("No projects found")
		return nil
	}

	var selected int64
	if current, err := c.studio.CurrentProject(ctx); err == nil {
		selected = current.ID
	}
	rows := pterm.TableData{{"", "ID", "Title", "Slug", "Owner", "Modified"}}
	for _, p := range projects {
		mark := ""
		if p.ID == selected {
			mark = "*"
		}
		rows = append(rows, []string{
			mark,
			strconv.FormatInt(p.ID, 10),
			p.Title,
			p.Slug,
			p.Owner.Nick,
			formatMillis(p.LastModified),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// SelectInput holds input for selecting a project.
type SelectInput struct {
	ID int64
}

// Select makes a project current for later file commands.
func (c StudioCmd) Select(ctx context.Context, in SelectInput) error {
	if _, err := c.session(ctx); err != nil {
		return err
	}
	p, err := c.studio.SelectProject(ctx, in.ID)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Selected %s (%d)\n", p.Title, p.ID)
	return nil
}

// FilesInput holds input for listing a project folder.
type FilesInput struct {
	Project int64
	Folder  string
	Output  string
}

// Files lists a project folder.
func (c StudioCmd) Files(ctx context.Context, in FilesInput) error {
	client, err := c.session(ctx)
	if err != nil {
		return err
	}
	projectID, err := c.project(ctx, in.Project)
	if err != nil {
		return err
	}
	files, err := client.ListProjectFiles(ctx, projectID, in.Folder)
	if err != nil {
		return err
	}
	if in.Output == "json" {
		return c.printJSON(files)
	}
	if len(files) == 0 {
		pterm.Info.Printf("No files in %s\n", in.Folder)
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].File < files[j].File })
	rows := pterm.TableData{{"File", "Version", "Size"}}
	for _, f := range files {
		rows = append(rows, []string{f.File, strconv.Itoa(f.Version), strconv.FormatInt(f.Size, 10)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// CatInput holds input for reading a file.
type CatInput struct {
	Project int64
	File    string
}

// Cat writes a file's content to the command output unchanged.
func (c StudioCmd) Cat(ctx context.Context, in CatInput) error {
	client, err := c.session(ctx)
	if err != nil {
		return err
	}
	projectID, err := c.project(ctx, in.Project)
	if err != nil {
		return err
	}
	content, err := client.ReadProjectFile(ctx, projectID, in.File)
	if err != nil {
		return err
	}
	_, err = io.WriteString(c.out, content)
	return err
}

// WriteInput holds input for writing a file.
type WriteInput struct {
	Project    int64
	File       string
	Content    string
	Properties map[string]string
}

// Write stores content at a project path.
func (c StudioCmd) Write(ctx context.Context, in WriteInput) error {
	client, err := c.session(ctx)
	if err != nil {
		return err
	}
	projectID, err := c.project(ctx, in.Project)
	if err != nil {
		return err
	}
	props := make(map[string]interface{}, len(in.Properties))
	for k, v := range in.Properties {
		props[k] = v
	}
	ack, err := client.WriteProjectFile(ctx, projectID, in.File, in.Content, props)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Wrote %s (version %d, %d bytes)\n", in.File, ack.Version, ack.Size)
	return nil
}

// CatalogInput holds input for the public plugin and library listings.
type CatalogInput struct {
	Libraries bool
	Output    string
}

// Catalog lists public plugins, or libraries when in.Libraries is set.
func (c StudioCmd) Catalog(ctx context.Context, in CatalogInput) error {
	client, err := c.session(ctx)
	if err != nil {
		return err
	}
	list := client.PublicPlugins
	kind := "plugins"
	if in.Libraries {
		list = client.PublicLibraries
		kind = "libraries"
	}
	packages, err := list(ctx)
	if err != nil {
		return err
	}
	if in.Output == "json" {
		return c.printJSON(packages)
	}
	if len(packages) == 0 {
		pterm.Info.Printf("No public %s found\n", kind)
		return nil
	}

	rows := pterm.TableData{{"ID", "Title", "Slug", "Owner", "Likes"}}
	for _, p := range packages {
		rows = append(rows, []string{strconv.FormatInt(p.ID, 10), p.Title, p.Slug, p.Owner, strconv.Itoa(p.Likes)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// BuildStatusInput holds input for querying an export build.
type BuildStatusInput struct {
	Project int64
	Target  string
	Output  string
}

// BuildStatus reports a project's export build for a target.
func (c StudioCmd) BuildStatus(ctx context.Context, in BuildStatusInput) error {
	client, err := c.session(ctx)
	if err != nil {
		return err
	}
	projectID, err := c.project(ctx, in.Project)
	if err != nil {
		return err
	}
	status, err := client.BuildStatus(ctx, projectID, in.Target)
	if err != nil {
		return err
	}
	if in.Output == "json" {
		return c.printJSON(status)
	}

	rows := pterm.TableData{{"Property", "Value"}}
	rows = append(rows, []string{"Project", strconv.FormatInt(projectID, 10)})
	rows = append(rows, []string{"Target", in.Target})
	rows = append(rows, []string{"Active target", strconv.FormatBool(status.ActiveTarget)})
	build := "-"
	if status.Build != nil {
		data, _ := json.Marshal(status.Build)
		build = string(data)
	}
	rows = append(rows, []string{"Build", build})
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// PingInput holds input for the ping command.
type PingInput struct {
	Count int
}

// Ping measures round trips to the service.
func (c StudioCmd) Ping(ctx context.Context, in PingInput) error {
	client, err := c.session(ctx)
	if err != nil {
		return err
	}
	if in.Count < 1 {
		in.Count = 1
	}
	for i := 1; i <= in.Count; i++ {
		start := time.Now()
		if err := client.Ping(ctx); err != nil {
			return err
		}
		pterm.Info.Printf("pong %d: %s\n", i, time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format(time.RFC3339)
}
