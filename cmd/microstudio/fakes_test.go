package main

import (
	"MicroStudioLink/internal/adapters/eventbus"
	"MicroStudioLink/internal/core/domain"
	"MicroStudioLink/internal/core/ports"
	"MicroStudioLink/internal/core/service"
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

// captureOutput redirects pterm into a buffer for the test. The prefix
// printers keep the writer they were built with, so they are swapped too.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	printers := []*pterm.PrefixPrinter{&pterm.Success, &pterm.Info, &pterm.Error, &pterm.Warning}
	saved := make([]io.Writer, len(printers))
	for i, p := range printers {
		saved[i] = p.Writer
		p.Writer = &buf
	}
	pterm.SetDefaultOutput(&buf)
	pterm.DisableStyling()
	t.Cleanup(func() {
		for i, p := range printers {
			p.Writer = saved[i]
		}
		pterm.SetDefaultOutput(os.Stdout)
		pterm.EnableStyling()
	})
	return &buf
}

type FakeStudio struct {
	LoginFunc          func(ctx context.Context, nick, password string) error
	ResumeFunc         func(ctx context.Context, fallback domain.Credentials) error
	LogoutFunc         func(ctx context.Context) error
	ListProjectsFunc   func(ctx context.Context, refresh bool) ([]domain.Project, error)
	SelectProjectFunc  func(ctx context.Context, id int64) (domain.Project, error)
	CurrentProjectFunc func(ctx context.Context) (domain.Project, error)

	client ports.StudioClient
}

func (f *FakeStudio) Login(ctx context.Context, nick, password string) error {
	if f.LoginFunc != nil {
		return f.LoginFunc(ctx, nick, password)
	}
	return nil
}

func (f *FakeStudio) Resume(ctx context.Context, fallback domain.Credentials) error {
	if f.ResumeFunc != nil {
		return f.ResumeFunc(ctx, fallback)
	}
	return service.ErrNoStoredToken
}

func (f *FakeStudio) Logout(ctx context.Context) error {
	if f.LogoutFunc != nil {
		return f.LogoutFunc(ctx)
	}
	return nil
}

func (f *FakeStudio) Close() {}

func (f *FakeStudio) Client() (ports.StudioClient, error) {
	if f.client == nil {
		return nil, service.ErrNoSession
	}
	return f.client, nil
}

func (f *FakeStudio) ListProjects(ctx context.Context, refresh bool) ([]domain.Project, error) {
	if f.ListProjectsFunc != nil {
		return f.ListProjectsFunc(ctx, refresh)
	}
	return []domain.Project{}, nil
}

func (f *FakeStudio) SelectProject(ctx context.Context, id int64) (domain.Project, error) {
	if f.SelectProjectFunc != nil {
		return f.SelectProjectFunc(ctx, id)
	}
	return domain.Project{ID: id}, nil
}

func (f *FakeStudio) CurrentProject(ctx context.Context) (domain.Project, error) {
	if f.CurrentProjectFunc != nil {
		return f.CurrentProjectFunc(ctx)
	}
	return domain.Project{}, service.ErrNoProjectSelected
}

type FakeStudioClient struct {
	ListProjectFilesFunc func(ctx context.Context, projectID int64, folder string) ([]domain.ProjectFile, error)
	ReadProjectFileFunc  func(ctx context.Context, projectID int64, file string) (string, error)
	WriteProjectFileFunc func(ctx context.Context, projectID int64, file, content string, properties map[string]interface{}) (domain.FileWrite, error)
	PublicPluginsFunc    func(ctx context.Context) ([]domain.PublicPackage, error)
	PublicLibrariesFunc  func(ctx context.Context) ([]domain.PublicPackage, error)
	BuildStatusFunc      func(ctx context.Context, projectID int64, target string) (domain.BuildStatus, error)
	PingFunc             func(ctx context.Context) error

	nick string
	bus  ports.EventBus
}

func newFakeClient(nick string) *FakeStudioClient {
	nopLogger := zerolog.Nop()
	return &FakeStudioClient{nick: nick, bus: eventbus.NewInMemoryEventBus(&nopLogger)}
}

func (f *FakeStudioClient) Connect(ctx context.Context) error  { return nil }
func (f *FakeStudioClient) Close() error                       { return nil }
func (f *FakeStudioClient) State() domain.ConnectionState      { return domain.StateReady }
func (f *FakeStudioClient) Token() string                      { return "tok" }
func (f *FakeStudioClient) Nick() string                       { return f.nick }
func (f *FakeStudioClient) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return nil, nil
}

func (f *FakeStudioClient) ListProjectFiles(ctx context.Context, projectID int64, folder string) ([]domain.ProjectFile, error) {
	if f.ListProjectFilesFunc != nil {
		return f.ListProjectFilesFunc(ctx, projectID, folder)
	}
	return nil, nil
}

func (f *FakeStudioClient) ReadProjectFile(ctx context.Context, projectID int64, file string) (string, error) {
	if f.ReadProjectFileFunc != nil {
		return f.ReadProjectFileFunc(ctx, projectID, file)
	}
	return "", nil
}

func (f *FakeStudioClient) WriteProjectFile(ctx context.Context, projectID int64, file, content string, properties map[string]interface{}) (domain.FileWrite, error) {
	if f.WriteProjectFileFunc != nil {
		return f.WriteProjectFileFunc(ctx, projectID, file, content, properties)
	}
	return domain.FileWrite{}, nil
}

func (f *FakeStudioClient) PublicPlugins(ctx context.Context) ([]domain.PublicPackage, error) {
	if f.PublicPluginsFunc != nil {
		return f.PublicPluginsFunc(ctx)
	}
	return nil, nil
}

func (f *FakeStudioClient) PublicLibraries(ctx context.Context) ([]domain.PublicPackage, error) {
	if f.PublicLibrariesFunc != nil {
		return f.PublicLibrariesFunc(ctx)
	}
	return nil, nil
}

func (f *FakeStudioClient) BuildStatus(ctx context.Context, projectID int64, target string) (domain.BuildStatus, error) {
	if f.BuildStatusFunc != nil {
		return f.BuildStatusFunc(ctx, projectID, target)
	}
	return domain.BuildStatus{}, nil
}

func (f *FakeStudioClient) Ping(ctx context.Context) error {
	if f.PingFunc != nil {
		return f.PingFunc(ctx)
	}
	return nil
}

func (f *FakeStudioClient) On(topic string, handler ports.EventHandler, opts ...ports.SubscribeOption) (ports.SubscriptionID, error) {
	return f.bus.Subscribe(topic, handler, opts...)
}

func (f *FakeStudioClient) Once(topic string, handler ports.EventHandler, opts ...ports.SubscribeOption) (ports.SubscriptionID, error) {
	return f.bus.SubscribeOnce(topic, handler, opts...)
}

func (f *FakeStudioClient) Off(topic string, ids ...ports.SubscriptionID) {
	f.bus.Unsubscribe(topic, ids...)
}

var _ ports.StudioClient = (*FakeStudioClient)(nil)
