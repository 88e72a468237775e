package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joemphilips/ldkboss/ldkrpc"
	"github.com/joemphilips/ldkboss/store"
)

// IngestEarnings fetches forwarded payments past the saved pagination
// cursor and records both sides of every hop. The cursor is persisted
// after each page so a crash never replays a page.
func IngestEarnings(ctx context.Context, st *store.Store, client ldkrpc.Client) error {
	pageToken, err := loadPageToken(st)
	if err != nil {
		return err
	}

	var totalIngested uint64
	for {
		page, err := client.ListForwardedPayments(ctx, pageToken)
		if err != nil {
			return fmt.Errorf("list forwarded payments: %w", err)
		}

		bucket := store.DayBucket(float64(time.Now().Unix()))
		for _, fwd := range page.ForwardedPayments {
			if fwd.PrevChannelID != "" {
				if err := st.AddEarning(fwd.PrevChannelID, fwd.PrevNodeID, bucket,
					int64(fwd.TotalFeeEarnedMsat), int64(fwd.OutboundAmountForwardedMsat),
					store.DirectionIn); err != nil {
					return err
				}
			}
			if fwd.NextChannelID != "" {
				if err := st.AddEarning(fwd.NextChannelID, fwd.NextNodeID, bucket,
					int64(fwd.TotalFeeEarnedMsat), int64(fwd.OutboundAmountForwardedMsat),
					store.DirectionOut); err != nil {
					return err
				}
			}
			totalIngested++
		}

		if page.NextPageToken == nil {
			break
		}
		if err := savePageToken(st, page.NextPageToken); err != nil {
			return err
		}
		pageToken = page.NextPageToken

		if len(page.ForwardedPayments) == 0 {
			break
		}
	}

	if totalIngested > 0 {
		log.Infof("Earnings tracker: ingested %d new forwarded payments",
			totalIngested)
	} else {
		log.Debugf("Earnings tracker: no new forwarded payments")
	}
	return nil
}

// The cursor is stored as "index:token".
func loadPageToken(st *store.Store) (*ldkrpc.PageToken, error) {
	raw, ok, err := st.SyncState(store.SyncKeyForwardedPaymentsToken)
	if err != nil || !ok {
		return nil, err
	}
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return nil, nil
	}
	index, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		index = 0
	}
	return &ldkrpc.PageToken{Index: index, Token: parts[1]}, nil
}

func savePageToken(st *store.Store, token *ldkrpc.PageToken) error {
	return st.SetSyncState(store.SyncKeyForwardedPaymentsToken,
		fmt.Sprintf("%d:%s", token.Index, token.Token))
}
