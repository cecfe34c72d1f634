package microstudio

import (
	"MicroStudioLink/internal/core/domain"
	"MicroStudioLink/internal/core/ports"
	"encoding/json"
	"errors"
	"fmt"
)

// RequestKind names an outgoing call.
type RequestKind string

// ResponseKind names an incoming frame.
type ResponseKind string

const (
	RequestLogin            RequestKind = "login"
	RequestToken            RequestKind = "token"
	RequestProjectList      RequestKind = "get_project_list"
	RequestPublicPlugins    RequestKind = "get_public_plugins"
	RequestPublicLibraries  RequestKind = "get_public_libraries"
	RequestBuildStatus      RequestKind = "get_build_status"
	RequestListProjectFiles RequestKind = "list_project_files"
	RequestReadProjectFile  RequestKind = "read_project_file"
	RequestPing             RequestKind = "ping"
	RequestWriteProjectFile RequestKind = "write_project_file"
)

const (
	ResponseLoggedIn         ResponseKind = "logged_in"
	ResponseTokenValid       ResponseKind = "token_valid"
	ResponseProjectList      ResponseKind = "project_list"
	ResponsePublicPlugins    ResponseKind = "public_plugins"
	ResponsePublicLibraries  ResponseKind = "public_libraries"
	ResponseBuildStatus      ResponseKind = "build_status"
	ResponseProjectFiles     ResponseKind = "project_files"
	ResponseReadProjectFile  ResponseKind = "read_project_file"
	ResponsePong             ResponseKind = "pong"
	ResponseWriteProjectFile ResponseKind = "write_project_file"

	// Unsolicited pushes. They never answer a call.
	EventAchievements ResponseKind = "achievements"
	EventUserStats    ResponseKind = "user_stats"
)

// responseKinds is fixed for the lifetime of the process.
var responseKinds = map[RequestKind]ResponseKind{
	RequestLogin:            ResponseLoggedIn,
	RequestToken:            ResponseTokenValid,
	RequestProjectList:      ResponseProjectList,
	RequestPublicPlugins:    ResponsePublicPlugins,
	RequestPublicLibraries:  ResponsePublicLibraries,
	RequestBuildStatus:      ResponseBuildStatus,
	RequestListProjectFiles: ResponseProjectFiles,
	RequestReadProjectFile:  ResponseReadProjectFile,
	RequestPing:             ResponsePong,
	RequestWriteProjectFile: ResponseWriteProjectFile,
}

// ExpectedResponse returns the response kind that answers a request kind.
func ExpectedResponse(kind RequestKind) (ResponseKind, error) {
	resp, ok := responseKinds[kind]
	if !ok {
		return "", fmt.Errorf("%w: no response mapping for request %q", ErrConfiguration, kind)
	}
	return resp, nil
}

// Payload holds the request fields sent next to name and request_id.
type Payload map[string]interface{}

// encodeRequest builds {name, ...payload, request_id}. name and request_id
// always win over payload keys of the same name.
func encodeRequest(kind RequestKind, requestID int64, payload Payload) ([]byte, error) {
	frame := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		frame[k] = v
	}
	frame["name"] = string(kind)
	frame["request_id"] = requestID
	return json.Marshal(frame)
}

var errMissingName = errors.New("frame has no name")

// Message is one parsed inbound frame. The envelope fields are read eagerly;
// the body is kept raw and decoded on demand.
type Message struct {
	name      string
	requestID *int64
	token     string
	raw       json.RawMessage
}

var _ ports.InboundMessage = (*Message)(nil)

type envelope struct {
	Name      string      `json:"name"`
	RequestID *int64      `json:"request_id"`
	Token     interface{} `json:"token"`
}

// ParseMessage decodes the envelope of a frame.
func ParseMessage(data []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	if env.Name == "" {
		return nil, errMissingName
	}
	token, _ := env.Token.(string)
	return &Message{
		name:      env.Name,
		requestID: env.RequestID,
		token:     token,
		raw:       append(json.RawMessage(nil), data...),
	}, nil
}

// Name is the declared kind of the frame.
func (m *Message) Name() string { return m.name }

// RequestID returns the correlation id echoed by the server, if any.
func (m *Message) RequestID() (int64, bool) {
	if m.requestID == nil {
		return 0, false
	}
	return *m.requestID, true
}

// Token is the frame's token field when it is a non-empty string.
func (m *Message) Token() string { return m.token }

// Raw is the frame exactly as received.
func (m *Message) Raw() json.RawMessage { return m.raw }

// Into decodes the whole frame into v.
func (m *Message) Into(v interface{}) error {
	if err := json.Unmarshal(m.raw, v); err != nil {
		return fmt.Errorf("decode %s frame: %w", m.name, err)
	}
	return nil
}

// Response is the closed set of decoded inbound frames.
type Response interface {
	Kind() ResponseKind
}

type LoggedIn struct {
	Token    string                 `json:"token"`
	Nick     string                 `json:"nick"`
	Email    string                 `json:"email"`
	Flags    domain.AccountFlags    `json:"flags"`
	Info     domain.UserInfo        `json:"info"`
	Settings map[string]interface{} `json:"settings"`
}

type TokenValid struct {
	Nick     string                 `json:"nick"`
	Email    string                 `json:"email"`
	Flags    domain.AccountFlags    `json:"flags"`
	Info     domain.UserInfo        `json:"info"`
	Settings map[string]interface{} `json:"settings"`
}

type ProjectList struct {
	List []domain.Project `json:"list"`
}

type PublicPlugins struct {
	List []domain.PublicPackage `json:"list"`
}

type PublicLibraries struct {
	List []domain.PublicPackage `json:"list"`
}

type BuildStatusReport struct {
	domain.BuildStatus
}

type ProjectFiles struct {
	Files []domain.ProjectFile `json:"files"`
}

type FileContent struct {
	Content string `json:"content"`
}

type Pong struct{}

type FileWritten struct {
	domain.FileWrite
}

type Achievements struct {
	Achievements []domain.Achievement `json:"achievements"`
}

type UserStats struct {
	Stats domain.UserStats `json:"stats"`
}

// UnknownEvent carries any frame whose name is not part of the protocol.
type UnknownEvent struct {
	Name string
	Raw  json.RawMessage
}

func (LoggedIn) Kind() ResponseKind          { return ResponseLoggedIn }
func (TokenValid) Kind() ResponseKind        { return ResponseTokenValid }
func (ProjectList) Kind() ResponseKind       { return ResponseProjectList }
func (PublicPlugins) Kind() ResponseKind     { return ResponsePublicPlugins }
func (PublicLibraries) Kind() ResponseKind   { return ResponsePublicLibraries }
func (BuildStatusReport) Kind() ResponseKind { return ResponseBuildStatus }
func (ProjectFiles) Kind() ResponseKind      { return ResponseProjectFiles }
func (FileContent) Kind() ResponseKind       { return ResponseReadProjectFile }
func (Pong) Kind() ResponseKind              { return ResponsePong }
func (FileWritten) Kind() ResponseKind       { return ResponseWriteProjectFile }
func (Achievements) Kind() ResponseKind      { return EventAchievements }
func (UserStats) Kind() ResponseKind         { return EventUserStats }
func (u UnknownEvent) Kind() ResponseKind    { return ResponseKind(u.Name) }

// Decode turns the frame into its typed variant.
func (m *Message) Decode() (Response, error) {
	var out Response
	var err error
	switch ResponseKind(m.name) {
	case ResponseLoggedIn:
		out, err = decodeAs[LoggedIn](m)
	case ResponseTokenValid:
		out, err = decodeAs[TokenValid](m)
	case ResponseProjectList:
		out, err = decodeAs[ProjectList](m)
	case ResponsePublicPlugins:
		out, err = decodeAs[PublicPlugins](m)
	case ResponsePublicLibraries:
		out, err = decodeAs[PublicLibraries](m)
	case ResponseBuildStatus:
		out, err = decodeAs[BuildStatusReport](m)
	case ResponseProjectFiles:
		out, err = decodeAs[ProjectFiles](m)
	case ResponseReadProjectFile:
		out, err = decodeAs[FileContent](m)
	case ResponsePong:
		out = Pong{}
	case ResponseWriteProjectFile:
		out, err = decodeAs[FileWritten](m)
	case EventAchievements:
		out, err = decodeAs[Achievements](m)
	case EventUserStats:
		out, err = decodeAs[UserStats](m)
	default:
		out = UnknownEvent{Name: m.name, Raw: m.raw}
	}
	return out, err
}

func decodeAs[T Response](m *Message) (Response, error) {
	var v T
	if err := m.Into(&v); err != nil {
		return nil, err
	}
	return v, nil
}
