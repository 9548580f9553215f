package recorder

import (
	"fmt"

	"github.com/bogem/id3v2"
)

type Tags struct {
	Title   string
	Artist  string
	Album   string
	Genre   string
	Comment string
}

// TagWriter embeds descriptive tags into a finished recording.
type TagWriter interface {
	WriteTags(path string, tags Tags) error
}

// ID3Tagger writes ID3v2.4 frames in UTF-8.
type ID3Tagger struct{}

func (ID3Tagger) WriteTags(path string, tags Tags) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open tags: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(tags.Title)
	tag.SetArtist(tags.Artist)
	tag.SetAlbum(tags.Album)
	if tags.Genre != "" {
		tag.SetGenre(tags.Genre)
	}
	if tags.Comment != "" {
		tag.DeleteFrames(tag.CommonID("Comments"))
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "",
			Text:        tags.Comment,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save tags: %w", err)
	}
	return nil
}

// ReadTags reads back the frames written by ID3Tagger.
func ReadTags(path string) (Tags, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return Tags{}, fmt.Errorf("failed to open tags: %w", err)
	}
	defer tag.Close()

	t := Tags{
		Title:  tag.Title(),
		Artist: tag.Artist(),
		Album:  tag.Album(),
		Genre:  tag.Genre(),
	}
	for _, f := range tag.GetFrames(tag.CommonID("Comments")) {
		if cf, ok := f.(id3v2.CommentFrame); ok {
			t.Comment = cf.Text
			break
		}
	}
	return t, nil
}
