package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	youtubeUploadURL  = "https://www.googleapis.com/upload/youtube/v3/videos"
	youtubeCategoryID = "28"
	youtubePlatform   = "youtube"
	DefaultRedirect   = "http://localhost:8080/callback"
	DefaultPrivacy    = "private"
)

var youtubeScopes = []string{
	"https://www.googleapis.com/auth/youtube.upload",
}

// Auth holds the OAuth client config and a token persisted on disk.
type Auth struct {
	config    *oauth2.Config
	token     *oauth2.Token
	tokenPath string
}

func NewAuth(clientID, clientSecret, tokenPath string) *Auth {
	return &Auth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       youtubeScopes,
			RedirectURL:  DefaultRedirect,
		},
		tokenPath: tokenPath,
	}
}

func (a *Auth) LoadToken() error {
	data, err := os.ReadFile(a.tokenPath)
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}

	a.token = &token
	return nil
}

func (a *Auth) SaveToken() error {
	if err := os.MkdirAll(filepath.Dir(a.tokenPath), 0700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}
	data, err := json.MarshalIndent(a.token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := os.WriteFile(a.tokenPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func (a *Auth) AuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (a *Auth) Exchange(ctx context.Context, code string) error {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}
	a.token = token
	return a.SaveToken()
}

func (a *Auth) Client(ctx context.Context) (*http.Client, error) {
	if a.token == nil {
		if err := a.LoadToken(); err != nil {
			return nil, err
		}
	}
	return a.config.Client(ctx, a.token), nil
}

// Authenticated reports whether a token is stored. An expired access token
// still counts when a refresh token is present.
func (a *Auth) Authenticated() bool {
	if a.token == nil {
		if err := a.LoadToken(); err != nil {
			return false
		}
	}
	return a.token.Valid() || a.token.RefreshToken != ""
}

type YouTubePublisher struct {
	auth      *Auth
	uploadURL string
}

type YouTubeOption func(*YouTubePublisher)

func withUploadURL(u string) YouTubeOption {
	return func(p *YouTubePublisher) { p.uploadURL = u }
}

func NewYouTubePublisher(auth *Auth, opts ...YouTubeOption) *YouTubePublisher {
	p := &YouTubePublisher{auth: auth, uploadURL: youtubeUploadURL}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *YouTubePublisher) Platform() string { return youtubePlatform }

type videoMetadata struct {
	Snippet struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags,omitempty"`
		CategoryID  string   `json:"categoryId"`
	} `json:"snippet"`
	Status struct {
		PrivacyStatus string `json:"privacyStatus"`
	} `json:"status"`
}

// Publish streams a multipart/related upload: JSON metadata first, then the
// video bytes.
func (p *YouTubePublisher) Publish(ctx context.Context, meta Metadata) (string, error) {
	httpClient, err := p.auth.Client(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get auth client: %w", err)
	}

	video, err := os.Open(meta.VideoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open video file: %w", err)
	}
	defer func() { _ = video.Close() }()

	var md videoMetadata
	md.Snippet.Title = meta.Title
	md.Snippet.Description = meta.Description
	md.Snippet.Tags = meta.Tags
	md.Snippet.CategoryID = youtubeCategoryID
	md.Status.PrivacyStatus = meta.Privacy
	if md.Status.PrivacyStatus == "" {
		md.Status.PrivacyStatus = DefaultPrivacy
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(mw, md, video))
	}()

	url := fmt.Sprintf("%s?uploadType=multipart&part=snippet,status", p.uploadURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		_ = pr.Close()
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload video: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload failed: %s: %s", resp.Status, string(body))
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &uploaded); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if uploaded.ID == "" {
		return "", fmt.Errorf("upload response carried no video id")
	}

	return "https://youtube.com/shorts/" + uploaded.ID, nil
}

func writeUpload(mw *multipart.Writer, md videoMetadata, video io.Reader) error {
	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return fmt.Errorf("failed to create metadata part: %w", err)
	}
	if err := json.NewEncoder(metaPart).Encode(md); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	videoPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"video/mp4"}})
	if err != nil {
		return fmt.Errorf("failed to create video part: %w", err)
	}
	if _, err := io.Copy(videoPart, video); err != nil {
		return fmt.Errorf("failed to copy video: %w", err)
	}
	return mw.Close()
}
