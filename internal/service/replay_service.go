package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/phuslu/log"

	"github.com/ndewijer/portfolio-rebalancer/internal/ledger"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
	"github.com/ndewijer/portfolio-rebalancer/internal/repository"
)

// LotMismatch is a lot present both in the store and in the replay whose
// remaining quantity or cost basis differs.
type LotMismatch struct {
	TransactionID string       `json:"transactionId"`
	Stored        model.TaxLot `json:"stored"`
	Replayed      model.TaxLot `json:"replayed"`
}

// ReplayReport compares the stored open lots of a user with the lots obtained
// by replaying the full transaction history from empty state.
//
// Missing lists replayed lots absent from the store, Unexpected lists stored
// lots the replay does not produce (including lots without an originating buy).
type ReplayReport struct {
	Consistent   bool           `json:"consistent"`
	Transactions int            `json:"transactions"`
	StoredLots   int            `json:"storedLots"`
	ReplayedLots int            `json:"replayedLots"`
	Missing      []model.TaxLot `json:"missing"`
	Unexpected   []model.TaxLot `json:"unexpected"`
	Mismatched   []LotMismatch  `json:"mismatched"`
}

// ReplayService verifies that the persisted lot state round-trips through the ledger.
type ReplayService struct {
	lotRepo         *repository.LotRepository
	transactionRepo *repository.TransactionRepository
	logger          *log.Logger
}

// NewReplayService creates a new ReplayService with the provided dependencies.
func NewReplayService(lotRepo *repository.LotRepository, transactionRepo *repository.TransactionRepository, logger *log.Logger) *ReplayService {
	return &ReplayService{
		lotRepo:         lotRepo,
		transactionRepo: transactionRepo,
		logger:          logger,
	}
}

// Verify replays every transaction of userID through an empty ledger and
// compares the resulting open lots with the stored ones. Lots are matched by
// the id of the buy that opened them.
//
// A replay failure (for example an over-sell in the history) is returned as an
// error; differences in lot state are reported, not returned as errors.
func (s *ReplayService) Verify(ctx context.Context, userID string) (*ReplayReport, error) {
	txs, err := s.transactionRepo.GetTransactions(ctx, userID, model.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	stored, err := s.lotRepo.GetOpenLots(ctx, userID, model.LotFilter{})
	if err != nil {
		return nil, err
	}

	led, _, err := ledger.Replay(txs)
	if err != nil {
		return nil, fmt.Errorf("failed to replay history of %s: %w", userID, err)
	}
	replayed := led.OpenLots(model.LotFilter{})

	report := &ReplayReport{
		Transactions: len(txs),
		StoredLots:   len(stored),
		ReplayedLots: len(replayed),
		Missing:      []model.TaxLot{},
		Unexpected:   []model.TaxLot{},
		Mismatched:   []LotMismatch{},
	}

	byTx := make(map[string]model.TaxLot, len(stored))
	for _, lot := range stored {
		if lot.TransactionID == "" {
			report.Unexpected = append(report.Unexpected, lot)
			continue
		}
		byTx[lot.TransactionID] = lot
	}

	for _, r := range replayed {
		st, ok := byTx[r.TransactionID]
		if !ok {
			report.Missing = append(report.Missing, r)
			continue
		}
		delete(byTx, r.TransactionID)
		if !st.RemainingQuantity.Equal(r.RemainingQuantity) || !st.CostBasisPerUnit.Equal(r.CostBasisPerUnit) ||
			st.HoldingID != r.HoldingID || st.AccountID != r.AccountID {
			report.Mismatched = append(report.Mismatched, LotMismatch{TransactionID: r.TransactionID, Stored: st, Replayed: r})
		}
	}

	leftover := make([]string, 0, len(byTx))
	for id := range byTx {
		leftover = append(leftover, id)
	}
	slices.Sort(leftover)
	for _, id := range leftover {
		report.Unexpected = append(report.Unexpected, byTx[id])
	}

	report.Consistent = len(report.Missing) == 0 && len(report.Unexpected) == 0 && len(report.Mismatched) == 0
	if !report.Consistent {
		s.logger.Warn().Str("user_id", userID).
			Int("missing", len(report.Missing)).
			Int("unexpected", len(report.Unexpected)).
			Int("mismatched", len(report.Mismatched)).
			Msg("stored lots differ from transaction replay")
	}
	return report, nil
}
