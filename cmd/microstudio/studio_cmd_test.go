package main

import (
	"MicroStudioLink/internal/core/domain"
	"MicroStudioLink/internal/core/ports"
	"MicroStudioLink/internal/core/service"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loggedIn returns a command whose studio already holds a session.
func loggedIn(client *FakeStudioClient) (StudioCmd, *FakeStudio, *bytes.Buffer) {
	studio := &FakeStudio{client: client}
	var out bytes.Buffer
	return StudioCmd{studio: studio, out: &out}, studio, &out
}

func TestStudioCmd_SessionFallsBackToConfiguredCredentials(t *testing.T) {
	captureOutput(t)
	studio := &FakeStudio{}
	var loginNick, loginPassword string
	studio.LoginFunc = func(ctx context.Context, nick, password string) error {
		loginNick, loginPassword = nick, password
		studio.client = newFakeClient(nick)
		return nil
	}
	c := StudioCmd{studio: studio, fallback: domain.Credentials{Nick: "alice", Password: "pw"}}

	client, err := c.session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", client.Nick())
	assert.Equal(t, "alice", loginNick)
	assert.Equal(t, "pw", loginPassword)
}

func TestStudioCmd_SessionWithoutAnyCredentials(t *testing.T) {
	c := StudioCmd{studio: &FakeStudio{}}
	_, err := c.session(context.Background())
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestStudioCmd_SessionResumeError(t *testing.T) {
	boom := errors.New("authentication failed")
	studio := &FakeStudio{ResumeFunc: func(ctx context.Context, fallback domain.Credentials) error { return boom }}
	c := StudioCmd{studio: studio, fallback: domain.Credentials{Nick: "alice", Password: "pw"}}

	_, err := c.session(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStudioCmd_Login(t *testing.T) {
	buf := captureOutput(t)
	studio := &FakeStudio{}
	studio.LoginFunc = func(ctx context.Context, nick, password string) error {
		studio.client = newFakeClient(nick)
		return nil
	}
	c := StudioCmd{studio: studio}

	assert.Error(t, c.Login(context.Background(), LoginInput{Nick: "alice"}))
	require.NoError(t, c.Login(context.Background(), LoginInput{Nick: "alice", Password: "pw"}))
	assert.Contains(t, buf.String(), "Logged in as alice")
}

func TestStudioCmd_ProjectsMarksSelected(t *testing.T) {
	buf := captureOutput(t)
	c, studio, _ := loggedIn(newFakeClient("alice"))
	studio.ListProjectsFunc = func(ctx context.Context, refresh bool) ([]domain.Project, error) {
		return []domain.Project{
			{ID: 1, Title: "Pong", Slug: "pong", Owner: domain.OwnerInfo{Nick: "alice"}},
			{ID: 2, Title: "Space Race", Slug: "space-race", Owner: domain.OwnerInfo{Nick: "bob"}},
		}, nil
	}
	studio.CurrentProjectFunc = func(ctx context.Context) (domain.Project, error) {
		return domain.Project{ID: 2}, nil
	}

	require.NoError(t, c.Projects(context.Background(), ProjectsInput{}))
	output := buf.String()
	assert.Contains(t, output, "Space Race")
	assert.Contains(t, output, "*")
	assert.Contains(t, output, "bob")
}

func TestStudioCmd_ProjectsJSON(t *testing.T) {
	captureOutput(t)
	c, studio, out := loggedIn(newFakeClient("alice"))
	studio.ListProjectsFunc = func(ctx context.Context, refresh bool) ([]domain.Project, error) {
		assert.True(t, refresh)
		return []domain.Project{{ID: 7, Title: "Tiles"}}, nil
	}

	require.NoError(t, c.Projects(context.Background(), ProjectsInput{Refresh: true, Output: "json"}))
	var got []domain.Project
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Tiles", got[0].Title)
}

func TestStudioCmd_FileCommandsNeedAProject(t *testing.T) {
	c, _, _ := loggedIn(newFakeClient("alice"))
	err := c.Cat(context.Background(), CatInput{File: "ms/main.ms"})
	assert.ErrorIs(t, err, service.ErrNoProjectSelected)
}

func TestStudioCmd_CatUsesSelectedProject(t *testing.T) {
	client := newFakeClient("alice")
	client.ReadProjectFileFunc = func(ctx context.Context, projectID int64, file string) (string, error) {
		assert.Equal(t, int64(42), projectID)
		assert.Equal(t, "ms/main.ms", file)
		return "init = function()\nend\n", nil
	}
	c, studio, out := loggedIn(client)
	studio.CurrentProjectFunc = func(ctx context.Context) (domain.Project, error) {
		return domain.Project{ID: 42}, nil
	}

	require.NoError(t, c.Cat(context.Background(), CatInput{File: "ms/main.ms"}))
	assert.Equal(t, "init = function()\nend\n", out.String())
}

func TestStudioCmd_WritePassesProperties(t *testing.T) {
	buf := captureOutput(t)
	client := newFakeClient("alice")
	client.WriteProjectFileFunc = func(ctx context.Context, projectID int64, file, content string, properties map[string]interface{}) (domain.FileWrite, error) {
		assert.Equal(t, int64(9), projectID)
		assert.Equal(t, "print(1)", content)
		assert.Equal(t, map[string]interface{}{"frames": "4"}, properties)
		return domain.FileWrite{Version: 3, Size: 8}, nil
	}
	c, _, _ := loggedIn(client)

	err := c.Write(context.Background(), WriteInput{
		Project:    9,
		File:       "ms/main.ms",
		Content:    "print(1)",
		Properties: map[string]string{"frames": "4"},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "version 3")
}

func TestStudioCmd_FilesSorted(t *testing.T) {
	buf := captureOutput(t)
	client := newFakeClient("alice")
	client.ListProjectFilesFunc = func(ctx context.Context, projectID int64, folder string) ([]domain.ProjectFile, error) {
		assert.Equal(t, "sprites", folder)
		return []domain.ProjectFile{{File: "ship.png", Version: 2}, {File: "alien.png", Version: 1}}, nil
	}
	c, _, _ := loggedIn(client)

	require.NoError(t, c.Files(context.Background(), FilesInput{Project: 1, Folder: "sprites"}))
	output := buf.String()
	assert.Less(t, bytes.Index([]byte(output), []byte("alien.png")), bytes.Index([]byte(output), []byte("ship.png")))
}

func TestStudioCmd_Catalog(t *testing.T) {
	buf := captureOutput(t)
	client := newFakeClient("alice")
	client.PublicLibrariesFunc = func(ctx context.Context) ([]domain.PublicPackage, error) {
		return []domain.PublicPackage{{ID: 5, Title: "Physics", Slug: "physics", Owner: "gilles", Likes: 12}}, nil
	}
	c, _, _ := loggedIn(client)

	require.NoError(t, c.Catalog(context.Background(), CatalogInput{Libraries: true}))
	assert.Contains(t, buf.String(), "Physics")

	require.NoError(t, c.Catalog(context.Background(), CatalogInput{}))
	assert.Contains(t, buf.String(), "No public plugins found")
}

func TestStudioCmd_BuildStatus(t *testing.T) {
	captureOutput(t)
	client := newFakeClient("alice")
	client.BuildStatusFunc = func(ctx context.Context, projectID int64, target string) (domain.BuildStatus, error) {
		assert.Equal(t, "windows", target)
		return domain.BuildStatus{Build: map[string]interface{}{"progress": 50.0}, ActiveTarget: true}, nil
	}
	c, _, out := loggedIn(client)

	require.NoError(t, c.BuildStatus(context.Background(), BuildStatusInput{Project: 3, Target: "windows", Output: "json"}))
	assert.JSONEq(t, `{"build":{"progress":50},"active_target":true}`, out.String())
}

func TestStudioCmd_PingPropagatesTimeout(t *testing.T) {
	captureOutput(t)
	calls := 0
	client := newFakeClient("alice")
	client.PingFunc = func(ctx context.Context) error {
		calls++
		if calls == 2 {
			return context.DeadlineExceeded
		}
		return nil
	}
	c, _, _ := loggedIn(client)

	err := c.Ping(context.Background(), PingInput{Count: 3})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls)
}

func TestWatchCmd_PrintsPushesUntilClosed(t *testing.T) {
	buf := captureOutput(t)
	client := newFakeClient("alice")
	c, _, _ := loggedIn(client)

	done := make(chan error, 1)
	go func() { done <- WatchCmd{studio: c}.Watch(context.Background()) }()

	require.Eventually(t, func() bool {
		count, _ := client.bus.ListenerCount(ports.TopicConnectionState)
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.bus.Publish(context.Background(), "user_stats", pushFrame(`{"stats":{"level":2,"xp":300}}`)))
	require.NoError(t, client.bus.Publish(context.Background(), ports.TopicConnectionState, domain.StateClosed))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errSessionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return")
	}
	assert.Contains(t, buf.String(), "Level 2, 300 XP")

	count, _ := client.bus.ListenerCount("user_stats")
	assert.Equal(t, 0, count)
}

func TestWatchCmd_StopsOnCancel(t *testing.T) {
	captureOutput(t)
	c, _, _ := loggedIn(newFakeClient("alice"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, WatchCmd{studio: c}.Watch(ctx))
}

type pushFrame string

func (p pushFrame) Name() string             { return "" }
func (p pushFrame) RequestID() (int64, bool) { return 0, false }
func (p pushFrame) Token() string            { return "" }
func (p pushFrame) Into(v interface{}) error { return json.Unmarshal([]byte(p), v) }
