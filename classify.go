package main

import (
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Built-in list-name aliases. These are always active; caller-supplied
// names are unioned in, never substituted.
var (
	builtinInProgressAliases = []string{"in progress", "in-progress", "doing"}
	builtinCompletedAliases  = []string{"completed", "complete", "done"}
)

// AliasConfig carries caller-supplied list-name aliases for the two
// columns. Zero value means built-ins only.
type AliasConfig struct {
	InProgress []string
	Completed  []string
}

// CardMetaFetcher resolves enriched metadata for a single card. The
// engine calls it at most once per distinct card id per invocation.
type CardMetaFetcher interface {
	CardMeta(cardID string) (CardMeta, error)
}

type aliasSets struct {
	inProgress map[string]bool
	completed  map[string]bool
}

func buildAliasSets(cfg AliasConfig) aliasSets {
	sets := aliasSets{
		inProgress: make(map[string]bool),
		completed:  make(map[string]bool),
	}
	for _, name := range builtinInProgressAliases {
		sets.inProgress[name] = true
	}
	for _, name := range cfg.InProgress {
		if n := normListName(name); n != "" {
			sets.inProgress[n] = true
		}
	}
	for _, name := range builtinCompletedAliases {
		sets.completed[name] = true
	}
	for _, name := range cfg.Completed {
		if n := normListName(name); n != "" {
			sets.completed[n] = true
		}
	}
	return sets
}

func normListName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// entryListName is the list a card landed in: listAfter when present,
// otherwise listBefore (creates and copies report only one list).
func entryListName(ev ActivityEvent) string {
	if ev.ListAfter != "" {
		return ev.ListAfter
	}
	return ev.ListBefore
}

// isEntryEvent reports whether the event moved, created, or copied a
// card into ANY tracked list. Which column it landed in is resolved
// separately.
func isEntryEvent(ev ActivityEvent, sets aliasSets) bool {
	switch ev.Kind {
	case KindCardMoved, KindCardCreated, KindCardCopied, KindCardMovedToBoard:
	default:
		return false
	}
	n := normListName(entryListName(ev))
	return sets.inProgress[n] || sets.completed[n]
}

// resolveColumn maps the event's landing list to a column, or "" when
// the list matches neither alias set. A name cannot belong to both.
func resolveColumn(ev ActivityEvent, sets aliasSets) ColumnTarget {
	n := normListName(entryListName(ev))
	if sets.inProgress[n] {
		return ColumnInProgress
	}
	if sets.completed[n] {
		return ColumnCompleted
	}
	return ""
}

func isSatelliteEvent(ev ActivityEvent) bool {
	switch ev.Kind {
	case KindCommentAdded:
		return strings.Contains(ev.CommentText, "http://") || strings.Contains(ev.CommentText, "https://")
	case KindChecklistItemState:
		return ev.ChecklistItemState == ChecklistComplete
	case KindAttachmentAdded:
		return true
	}
	return false
}

// ClassifyActivity reconstructs which cards entered the In-Progress or
// Completed columns from a flat, unordered board activity stream.
//
// Entry events (moves/creates/copies into a tracked list) classify the
// card; Completed is sticky and never downgraded within a run.
// Satellite events (comments with links, checklist completions,
// attachments) attach only to cards already classified by an entry
// event anywhere in the stream. Events keep their encounter order
// within a card; cards are sorted case-insensitively per column and
// columns are emitted In Progress first, then Completed.
//
// fetcher may be nil; when provided, each distinct card is enriched by
// exactly one metadata fetch, degrading to a minimal record per card
// on failure. Malformed events never produce an error; they simply
// fail to qualify.
func ClassifyActivity(events []ActivityEvent, aliases AliasConfig, fetcher CardMetaFetcher) []ColumnGroup {
	sets := buildAliasSets(aliases)

	// Pass 1: resolve each card's final column. Completed is sticky.
	resolved := make(map[string]ColumnTarget)
	for _, ev := range events {
		if !isEntryEvent(ev, sets) {
			continue
		}
		col := resolveColumn(ev, sets)
		if ev.CardID == "" || col == "" {
			continue
		}
		if resolved[ev.CardID] != ColumnCompleted {
			resolved[ev.CardID] = col
		}
	}

	// Pass 2: retain entry events plus qualifying satellites for
	// classified cards, grouping by final column then card.
	groups := map[ColumnTarget]map[string]*CardGroup{}
	for _, ev := range events {
		isEntry := isEntryEvent(ev, sets)
		if !isEntry {
			if _, ok := resolved[ev.CardID]; !ok {
				continue
			}
			if !isSatelliteEvent(ev) {
				continue
			}
		}

		col, ok := resolved[ev.CardID]
		if !ok {
			// Entry event without a card id: fall back to its own
			// immediate resolution.
			col = resolveColumn(ev, sets)
		}
		if col == "" {
			continue
		}

		cards := groups[col]
		if cards == nil {
			cards = map[string]*CardGroup{}
			groups[col] = cards
		}
		group := cards[ev.CardID]
		if group == nil {
			group = &CardGroup{CardID: ev.CardID, Name: ev.CardName}
			cards[ev.CardID] = group
		}
		if group.Name == "" && ev.CardName != "" {
			group.Name = ev.CardName
		}
		group.Events = append(group.Events, ev)
	}

	// Enrichment: one fetch per distinct card id, cached for the run.
	metaCache := make(map[string]CardMeta)
	lookupMeta := func(group *CardGroup) CardMeta {
		if meta, ok := metaCache[group.CardID]; ok {
			return meta
		}
		meta := CardMeta{CardID: group.CardID, Name: group.Name}
		if fetcher != nil && group.CardID != "" {
			fetched, err := fetcher.CardMeta(group.CardID)
			if err != nil {
				log.Printf("classify meta fetch failed card=%s: %v", group.CardID, err)
			} else {
				meta = fetched
			}
		}
		metaCache[group.CardID] = meta
		return meta
	}

	var result []ColumnGroup
	for _, col := range []ColumnTarget{ColumnInProgress, ColumnCompleted} {
		cards := groups[col]
		if len(cards) == 0 {
			continue
		}
		out := make([]CardGroup, 0, len(cards))
		for _, group := range cards {
			group.Meta = lookupMeta(group)
			if group.Name == "" && group.Meta.Name != "" {
				group.Name = group.Meta.Name
			}
			out = append(out, *group)
		}
		sort.Slice(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
		result = append(result, ColumnGroup{Column: col, Cards: out})
	}
	return result
}
