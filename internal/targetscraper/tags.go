package targetscraper

import (
	"context"
	"damadam-scraper/internal/rowstore"
	"damadam-scraper/lib/textutil"
	"errors"
	"strings"
)

// Tags maps a normalized nickname to the tags it was listed under.
type Tags map[string]string

// LoadTags reads the optional Tags table, every header cell is a tag name and
// the cells below it are the nicknames carrying that tag. A missing table is
// not an error.
func LoadTags(ctx context.Context, store rowstore.Store) (Tags, error) {
	rows, err := store.ReadAll(ctx, rowstore.TableTags)
	if errors.Is(err, rowstore.ErrTableNotFound) {
		return Tags{}, nil
	}
	if err != nil {
		return nil, err
	}

	header, data := rowstore.SplitHeader(rows)
	tags := Tags{}
	for column, tag := range header {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		for _, row := range data {
			nickname := textutil.NormalizeName(row.Get(column))
			if nickname == "" {
				continue
			}
			if existing, ok := tags[nickname]; ok {
				tags[nickname] = existing + ", " + tag
				continue
			}
			tags[nickname] = tag
		}
	}
	return tags, nil
}

func (t Tags) For(nickname string) string {
	return t[textutil.NormalizeName(nickname)]
}
