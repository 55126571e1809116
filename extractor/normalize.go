package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"teraext/internal"
)

// The listing APIs are inconsistent about field types: numeric ids arrive as
// numbers on some mirrors and as strings on others, and isdir flips between
// 0/1 and "0"/"1". The flex* types absorb those variants at the decoding
// boundary so the rest of the code sees one shape.

type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(string(b))
	return nil
}

func (f flexString) String() string { return string(f) }

type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("numeric field: %w", err)
	}
	*f = flexInt(v)
	return nil
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	switch s {
	case "1", "true":
		*f = true
	case "0", "false", "", "null":
		*f = false
	default:
		return fmt.Errorf("boolean field: unexpected value %q", s)
	}
	return nil
}

// shareListResponse is the common envelope of the listing endpoints.
type shareListResponse struct {
	Errno     int         `json:"errno"`
	Errmsg    string      `json:"errmsg"`
	List      []shareFile `json:"list"`
	UK        flexString  `json:"uk"`
	ShareID   flexString  `json:"shareid"`
	ShareIDv2 flexString  `json:"share_id"`
	Sign      string      `json:"sign"`
	Timestamp flexString  `json:"timestamp"`
}

func (r *shareListResponse) shareID() string {
	if r.ShareID != "" {
		return r.ShareID.String()
	}
	return r.ShareIDv2.String()
}

// shareFile is one raw entry of a share listing.
type shareFile struct {
	FsID     flexString `json:"fs_id"`
	Name     string     `json:"server_filename"`
	AltName  string     `json:"filename"`
	Path     string     `json:"path"`
	IsDir    flexBool   `json:"isdir"`
	Size     flexInt    `json:"size"`
	Dlink    string     `json:"dlink"`
	Category flexInt    `json:"category"`
	Thumbs   thumbs     `json:"thumbs"`
}

type thumbs struct {
	URL3 string `json:"url3"`
	URL2 string `json:"url2"`
	URL1 string `json:"url1"`
	Icon string `json:"icon"`
}

func (t thumbs) best() string {
	for _, u := range []string{t.URL3, t.URL2, t.URL1, t.Icon} {
		if u != "" {
			return u
		}
	}
	return ""
}

func (f *shareFile) name() string {
	if f.Name != "" {
		return f.Name
	}
	return f.AltName
}

// childLister fetches the raw listing of one directory path.
type childLister func(dirPath string) ([]shareFile, error)

// Directory recursion is bounded to keep a hostile listing from pinning the
// resolver; anything deeper degrades the same way a failed child fetch does.
const maxTraversalDepth = 8

// buildTree converts raw listing entries into FileNodes, recursively
// resolving directories through list. A failed child fetch yields an empty
// child list and a TraversalWarning instead of failing the parent.
func buildTree(entries []shareFile, list childLister, warnings *[]internal.TraversalWarning, depth int) []*internal.FileNode {
	nodes := make([]*internal.FileNode, 0, len(entries))
	for i := range entries {
		entry := &entries[i]
		node := &internal.FileNode{
			IsDir:        bool(entry.IsDir),
			Path:         entry.Path,
			FsID:         entry.FsID.String(),
			Name:         entry.name(),
			Size:         int64(entry.Size),
			ThumbnailURL: entry.Thumbs.best(),
		}
		if node.IsDir {
			node.Children = []*internal.FileNode{}
			switch {
			case list == nil:
				// Backend cannot traverse; leave the directory empty.
			case depth >= maxTraversalDepth:
				*warnings = append(*warnings, internal.TraversalWarning{
					Path:    node.Path,
					Message: "maximum directory depth reached",
				})
			default:
				children, err := list(node.Path)
				if err != nil {
					*warnings = append(*warnings, internal.TraversalWarning{
						Path:    node.Path,
						Message: err.Error(),
					})
				} else {
					node.Children = buildTree(children, list, warnings, depth+1)
				}
			}
		} else {
			node.Category = ClassifyName(node.Name)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// decodeJSON reads a response body into v with a sane error for garbage.
func decodeJSON(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return internal.NewExtractError(0,
			fmt.Sprintf("unparseable upstream response: %v", err), internal.ErrInvalidResponse)
	}
	return nil
}

// mapErrno converts an upstream errno into the shared error taxonomy.
func mapErrno(errno int, errmsg string) *internal.ExtractError {
	switch errno {
	case 0:
		return nil
	case -1, 2:
		return internal.NewExtractError(errno, "invalid request parameters", internal.ErrInvalidURL)
	case -2, -3, -9:
		return internal.NewExtractError(errno, "authentication required or invalid", internal.ErrAuthRequired)
	case -4, -5, 10, 11, 12:
		return internal.NewExtractError(errno, "share not found, cancelled or expired", internal.ErrFileNotFound)
	case -6:
		return internal.NewExtractError(errno, "rate limit exceeded", internal.ErrRateLimit)
	case -7, -8:
		return internal.NewExtractError(errno, "quota exceeded", internal.ErrQuotaExceeded)
	case 14, 15:
		return internal.NewExtractError(errno, "share password required or incorrect", internal.ErrAuthRequired)
	case 110, 111:
		return internal.NewExtractError(errno, "access token invalid or expired", internal.ErrAuthRequired)
	default:
		if errmsg == "" {
			errmsg = fmt.Sprintf("unknown API error (errno %d)", errno)
		}
		return internal.NewExtractError(errno, errmsg, internal.ErrInvalidResponse)
	}
}
