package service

import (
	"database/sql"

	"github.com/phuslu/log"

	"github.com/ndewijer/portfolio-rebalancer/internal/repository"
	"github.com/ndewijer/portfolio-rebalancer/internal/selector"
)

// Services is the full set of services over one database, shared by the
// HTTP server and the CLI.
type Services struct {
	System      *SystemService
	Rebalance   *RebalanceService
	Performance *PerformanceService
	Snapshot    *SnapshotService
	Ledger      *LedgerService
	Replay      *ReplayService
	Allocation  *AllocationService
	Price       *PriceService
}

// NewServices creates the repositories over db and every service on top of them.
// rates drive tax-aware selection; benchmark is the default benchmark ticker.
func NewServices(db *sql.DB, rates selector.Rates, benchmark string, logger *log.Logger) *Services {
	accountRepo := repository.NewAccountRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	holdingRepo := repository.NewHoldingRepository(db)
	lotRepo := repository.NewLotRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	dataLoader := NewDataLoaderService(accountRepo, groupRepo, holdingRepo, lotRepo, transactionRepo, priceRepo)
	performance := NewPerformanceService(dataLoader, benchmark, logger)

	return &Services{
		System:      NewSystemService(db),
		Rebalance:   NewRebalanceService(dataLoader, rates, logger),
		Performance: performance,
		Snapshot:    NewSnapshotService(db, snapshotRepo, transactionRepo, performance, logger),
		Ledger:      NewLedgerService(db, accountRepo, holdingRepo, lotRepo, transactionRepo, logger),
		Replay:      NewReplayService(lotRepo, transactionRepo, logger),
		Allocation:  NewAllocationService(db, accountRepo, groupRepo, holdingRepo),
		Price:       NewPriceService(db, holdingRepo, priceRepo),
	}
}
