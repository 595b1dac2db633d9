package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Discussion is a question/answer/code item imported from GitHub.
// Descriptive fields are never changed after import.
type Discussion struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Repository  string    `json:"repository"`
	Number      int       `json:"number,omitempty"`
	Language    string    `json:"language,omitempty"`
	ReleaseTag  string    `json:"release_tag,omitempty"`
	ReleaseURL  string    `json:"release_url,omitempty"`
	ReleaseDate string    `json:"release_date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ImportedAt  time.Time `json:"imported_at"`
}

// DiscussionID derives the stable id of a discussion.
// owner/repo#12 becomes owner_repo_12; without a repository and number the URL is hashed.
func DiscussionID(repository string, number int, url string) (string, error) {
	repo := strings.Trim(strings.TrimSpace(repository), "/")
	if repo != "" && number > 0 {
		return fmt.Sprintf("%s_%d", strings.ReplaceAll(repo, "/", "_"), number), nil
	}
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("discussion needs repository and number or a url")
	}
	return "url-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.TrimSpace(url))).String(), nil
}
