package controllers

import (
	"context"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/amaumene/watchqueue/internal/models"
	"github.com/amaumene/watchqueue/internal/utils"
)

// Suggestion is a title close to a search query
type Suggestion struct {
	ItemID   string
	Title    string
	Distance int
}

// Suggest returns up to limit active items whose titles are closest to query.
// Titles containing the query rank first; the rest are ranked by edit distance
// against the best matching word window of the title.
func (c *ItemController) Suggest(ctx context.Context, ownerID, query string, limit int) ([]Suggestion, error) {
	folded := utils.FoldTitle(query)
	if folded == "" {
		return []Suggestion{}, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	var items []models.Item
	err := c.db.Conn(ctx).
		Select("id, title, search_title").
		Where("owner_id = ? AND is_deleted = ?", ownerID, false).
		Find(&items).Error
	if err != nil {
		return nil, utils.Persistence("load titles", err)
	}

	// Anything further than half the query length away is noise
	maxDistance := len([]rune(folded)) / 2

	suggestions := make([]Suggestion, 0, len(items))
	for _, item := range items {
		d := titleDistance(folded, item.SearchTitle)
		if d > maxDistance {
			continue
		}
		suggestions = append(suggestions, Suggestion{ItemID: item.ID, Title: item.Title, Distance: d})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Distance != suggestions[j].Distance {
			return suggestions[i].Distance < suggestions[j].Distance
		}
		return suggestions[i].Title < suggestions[j].Title
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// titleDistance is 0 when title contains query, otherwise the smallest edit
// distance between query and any run of title words of the same word count.
func titleDistance(query, title string) int {
	if strings.Contains(title, query) {
		return 0
	}

	words := strings.Fields(title)
	n := len(strings.Fields(query))
	if n == 0 || len(words) <= n {
		return levenshtein.ComputeDistance(query, title)
	}

	best := -1
	for i := 0; i+n <= len(words); i++ {
		d := levenshtein.ComputeDistance(query, strings.Join(words[i:i+n], " "))
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}
