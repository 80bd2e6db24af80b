package evegateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
)

// namesBatchMax is the upstream's per-request limit for /universe/names/.
const namesBatchMax = 1000

type namesClient struct {
	c *Client
}

func nameCacheKey(id int64) string {
	return fmt.Sprintf("names:%d", id)
}

// ResolveNames resolves identifiers to names with per-ID caching. Cache hits
// are served without touching the upstream; misses are batched into chunks of
// at most 1000 IDs. Unknown IDs are simply absent from the result.
func (n *namesClient) ResolveNames(ctx context.Context, ids []int64) (map[int64]NameRef, error) {
	result := make(map[int64]NameRef, len(ids))

	seen := make(map[int64]bool, len(ids))
	var misses []int64
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true

		// The category is unknown until the entry decodes, so L1 repopulation
		// from L2 uses the shorter identity TTL.
		if data, hit := n.c.cacheGet(nameCacheKey(id), TTLIdentity); hit {
			var ref NameRef
			if err := json.Unmarshal(data, &ref); err == nil {
				result[id] = ref
				continue
			}
		}
		misses = append(misses, id)
	}

	if len(misses) == 0 {
		return result, nil
	}
	// Deterministic request bodies make upstream-side caching effective.
	sort.Slice(misses, func(i, j int) bool { return misses[i] < misses[j] })

	for start := 0; start < len(misses); start += namesBatchMax {
		end := start + namesBatchMax
		if end > len(misses) {
			end = len(misses)
		}
		if err := n.resolveChunk(ctx, misses[start:end], result); err != nil {
			return nil, err
		}
	}

	slog.DebugContext(ctx, "Resolved identifier names",
		"requested", len(seen), "fetched", len(misses))
	return result, nil
}

func (n *namesClient) resolveChunk(ctx context.Context, ids []int64, result map[int64]NameRef) error {
	body, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal id batch: %w", err)
	}

	data, err := n.c.post(ctx, "/latest/universe/names/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to resolve names: %w", err)
	}
	if data == nil {
		// The upstream 404s a batch where no ID resolves.
		return nil
	}

	var refs []NameRef
	if err := json.Unmarshal(data, &refs); err != nil {
		return fmt.Errorf("failed to parse names response: %w", err)
	}

	for _, ref := range refs {
		result[ref.ID] = ref
		if entry, err := json.Marshal(ref); err == nil {
			n.c.cacheSet(nameCacheKey(ref.ID), entry, n.c.effectiveTTL(ClassTTL(ref.Category)), nil)
		}
	}
	return nil
}

// GetAllianceInfo returns an alliance's name and ticker, nil when the alliance
// does not exist.
func (n *namesClient) GetAllianceInfo(ctx context.Context, allianceID int64) (*AffiliationInfo, error) {
	return n.affiliation(ctx, fmt.Sprintf("/latest/alliances/%d/", allianceID))
}

// GetCorporationInfo returns a corporation's name and ticker, nil when the
// corporation does not exist.
func (n *namesClient) GetCorporationInfo(ctx context.Context, corporationID int64) (*AffiliationInfo, error) {
	return n.affiliation(ctx, fmt.Sprintf("/latest/corporations/%d/", corporationID))
}

func (n *namesClient) affiliation(ctx context.Context, path string) (*AffiliationInfo, error) {
	data, err := n.c.get(ctx, path, TTLIdentity, false)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var info AffiliationInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse affiliation response: %w", err)
	}
	return &info, nil
}

type characterClient struct {
	c *Client
}

// GetRecentKillmailRefs lists a character's recent killmail references. The
// endpoint requires a bearer token; tokens rotate round-robin across requests.
func (cc *characterClient) GetRecentKillmailRefs(ctx context.Context, characterID int64) ([]KillmailRef, error) {
	path := fmt.Sprintf("/latest/characters/%d/killmails/recent/", characterID)
	data, err := cc.c.get(ctx, path, TTLIdentity, true)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var refs []KillmailRef
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, fmt.Errorf("failed to parse killmail refs: %w", err)
	}
	return refs, nil
}
