package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mtgprep/mtgprep/internal/slack"
)

const maxChannelPages = 5

// Channels lists active channels whose names start with one of
// prefixes, sorted by name. No prefixes means every channel.
func (c *Collector) Channels(ctx context.Context, prefixes ...string) ([]slack.Channel, error) {
	var out []slack.Channel
	cursor := ""
	for page := 0; page < maxChannelPages; page++ {
		p, err := c.api.Channels(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("list channels: %w", err)
		}
		for _, ch := range p.Items {
			if ch.IsArchived || !hasPrefix(ch.Name, prefixes) {
				continue
			}
			out = append(out, ch)
		}
		if cursor = p.NextCursor; cursor == "" {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func hasPrefix(name string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Configured reports whether the chat API has credentials. APIs that
// cannot tell are assumed configured.
func (c *Collector) Configured() bool {
	if cc, ok := c.api.(interface{ Configured() bool }); ok {
		return cc.Configured()
	}
	return true
}
