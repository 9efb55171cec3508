package audio

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// Tags is the subset of container metadata used to prefill song imports.
type Tags struct {
	Title  string
	Artist string
}

// FFprobeTagReader shells out to ffprobe for container tags.
type FFprobeTagReader struct {
	FFprobePath string
}

func (r *FFprobeTagReader) ReadTags(path string) (Tags, error) {
	bin := r.FFprobePath
	if bin == "" {
		bin = "ffprobe"
	}

	out, err := exec.Command(bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	).Output()
	if err != nil {
		return Tags{}, fmt.Errorf("probe %s: %w", path, err)
	}

	var probed struct {
		Format struct {
			Tags map[string]string `json:"tags"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probed); err != nil {
		return Tags{}, fmt.Errorf("parse probe output: %w", err)
	}

	tags := Tags{}
	for k, v := range probed.Format.Tags {
		switch strings.ToLower(k) {
		case "title":
			tags.Title = v
		case "artist":
			tags.Artist = v
		}
	}
	return tags, nil
}
