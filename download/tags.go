package download

import (
	"fmt"
	"strings"

	"github.com/bogem/id3v2"
)

func readTags(path string) (title, artist string, err error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return "", "", fmt.Errorf("download: read id3 tags: %w", err)
	}
	defer tag.Close()
	return strings.TrimSpace(tag.Title()), strings.TrimSpace(tag.Artist()), nil
}
