package ports

import (
	"MicroStudioLink/internal/core/domain"
	"context"
	"errors"
)

// ErrAuthentication means the service accepted neither the token nor the
// credentials. Connect failures wrap it only for that case.
var ErrAuthentication = errors.New("authentication failed")

// TopicConnectionState is published with a domain.ConnectionState on every
// lifecycle transition of a client.
const TopicConnectionState = "connection:state"

// InboundMessage is a frame received from the remote service. It is the Data
// of every event a StudioClient publishes under the frame's name.
type InboundMessage interface {
	Name() string
	RequestID() (int64, bool)
	Token() string
	// Into decodes the whole frame into v.
	Into(v interface{}) error
}

// StudioClient is the call/response facade over one MicroStudio session.
type StudioClient interface {
	Connect(ctx context.Context) error
	Close() error
	State() domain.ConnectionState
	Token() string
	Nick() string

	ListProjects(ctx context.Context) ([]domain.Project, error)
	ListProjectFiles(ctx context.Context, projectID int64, folder string) ([]domain.ProjectFile, error)
	ReadProjectFile(ctx context.Context, projectID int64, file string) (string, error)
	WriteProjectFile(ctx context.Context, projectID int64, file, content string, properties map[string]interface{}) (domain.FileWrite, error)
	PublicPlugins(ctx context.Context) ([]domain.PublicPackage, error)
	PublicLibraries(ctx context.Context) ([]domain.PublicPackage, error)
	BuildStatus(ctx context.Context, projectID int64, target string) (domain.BuildStatus, error)
	Ping(ctx context.Context) error

	// On, Once and Off manage standing subscriptions to pushed frames.
	On(topic string, handler EventHandler, opts ...SubscribeOption) (SubscriptionID, error)
	Once(topic string, handler EventHandler, opts ...SubscribeOption) (SubscriptionID, error)
	Off(topic string, ids ...SubscriptionID)
}

// ClientFactory builds an unconnected client for a set of credentials.
type ClientFactory func(creds domain.Credentials) StudioClient
