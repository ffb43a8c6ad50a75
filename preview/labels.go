package preview

import "fmt"

const DownloadingStatus = "Downloading..."

func SongLabel(songID int64) string {
	if songID > 0 {
		return fmt.Sprintf("Song: %d", songID)
	}
	return "Song: (none)"
}

// StatusLabel is empty unless a known song is still downloading.
func StatusLabel(songID int64, downloading bool) string {
	if songID > 0 && downloading {
		return DownloadingStatus
	}
	return ""
}

// LabelView keeps the rendered strings of the song section.
type LabelView struct {
	Song    string
	Status  string
	Updates int
}

func (v *LabelView) SetSong(songID int64, downloading bool) {
	v.Song = SongLabel(songID)
	v.Status = StatusLabel(songID, downloading)
	v.Updates++
}
