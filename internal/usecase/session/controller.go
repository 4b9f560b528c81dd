package session

import (
	"context"
	"errors"
	"sync"

	"bitguardian/internal/domain/loan"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Messages surfaced verbatim to presentation.
const (
	MsgConnectFailed = "Failed to connect wallet. Make sure MetaMask is installed and unlocked."
	MsgCreateFailed  = "Failed to create loan. Please try again."
	MsgTakeFailed    = "Failed to take loan. Please try again."
	MsgRepayFailed   = "Failed to repay loan. Please try again."
	MsgFetchFailed   = "Failed to fetch available loans. Please try again."
)

var (
	ErrClosed = errors.New("session closed")
	// ErrStale is returned when a newer call of the same operation started
	// before this one resolved; its result was not applied to state.
	ErrStale = errors.New("superseded by a newer call")
)

type WalletConnector interface {
	Connect(ctx context.Context) (string, error)
}

type LendingGateway interface {
	CreateLoan(ctx context.Context, account, principal, collateral string) (uint64, error)
	TakeLoan(ctx context.Context, account string, loanID uint64, collateral string) (bool, error)
	RepayLoan(ctx context.Context, account string, loanID uint64, principal string) (bool, error)
}

type LoanDirectory interface {
	ListOpenLoans(ctx context.Context) ([]loan.Loan, error)
}

// State is a snapshot of the controller; presentation never mutates it.
type State struct {
	Account    string      `json:"account,omitempty"`
	Loans      []loan.Loan `json:"loans"`
	Loading    bool        `json:"loading"`
	Connecting bool        `json:"connecting"`
	Error      string      `json:"error,omitempty"`
}

type op int

const (
	opConnect op = iota
	opRefresh
	opCreate
	opTake
	opRepay
	numOps
)

func (o op) String() string {
	return [...]string{"connect_wallet", "refresh_loans", "create_loan", "take_loan", "repay_loan"}[o]
}

// Controller holds the lending state of one session. Each call bumps a
// per-operation generation; a result is applied only if its generation is
// still current and the session is not closed.
type Controller struct {
	id        string
	wallet    WalletConnector
	gateway   LendingGateway
	directory LoanDirectory
	log       zerolog.Logger

	root   context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	gen        [numOps]uint64
	loading    int
	connecting int
	closed     bool
}

func NewController(id string, w WalletConnector, g LendingGateway, d LoanDirectory) *Controller {
	root, cancel := context.WithCancel(context.Background())
	return &Controller{
		id:        id,
		wallet:    w,
		gateway:   g,
		directory: d,
		log:       log.With().Str("session", id).Logger(),
		root:      root,
		cancel:    cancel,
		state:     State{Loans: []loan.Loan{}},
	}
}

func (c *Controller) ID() string { return c.id }

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Loans = append([]loan.Loan(nil), c.state.Loans...)
	return s
}

func (c *Controller) Account() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Account
}

// Close tears the session down. In-flight calls are canceled and their late
// results ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

// call is the bookkeeping for one in-flight operation.
type call struct {
	op      op
	gen     uint64
	ctx     context.Context
	release func()
}

func (c *Controller) begin(ctx context.Context, o op) (*call, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	c.gen[o]++
	c.state.Error = ""
	switch o {
	case opConnect:
		c.connecting++
		c.loading++
	case opRefresh:
		c.loading++
	}
	c.syncFlags()

	cctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.root, cancel)
	return &call{op: o, gen: c.gen[o], ctx: cctx, release: func() { stop(); cancel() }}, nil
}

// finish must be called with c.mu held. It reports whether the call's result
// may still be applied.
func (c *Controller) finish(cl *call) bool {
	cl.release()
	switch cl.op {
	case opConnect:
		c.connecting--
		c.loading--
	case opRefresh:
		c.loading--
	}
	c.syncFlags()
	return !c.closed && c.gen[cl.op] == cl.gen
}

func (c *Controller) syncFlags() {
	c.state.Loading = c.loading > 0
	c.state.Connecting = c.connecting > 0
}

func (c *Controller) fail(o op, msg string, err error) {
	c.state.Error = msg
	c.log.Warn().Err(err).Str("op", o.String()).Msg("lending operation failed")
}

// notApplied explains why a resolved call did not touch state.
func (c *Controller) notApplied() error {
	if c.closed {
		return ErrClosed
	}
	return ErrStale
}

// ConnectWallet requests an account from the wallet provider. On success the
// account is stored and an initial RefreshLoans runs; a refresh failure is
// recorded in state only.
func (c *Controller) ConnectWallet(ctx context.Context) error {
	cl, err := c.begin(ctx, opConnect)
	if err != nil {
		return err
	}
	account, err := c.wallet.Connect(cl.ctx)

	c.mu.Lock()
	if !c.finish(cl) {
		err := c.notApplied()
		c.mu.Unlock()
		return err
	}
	if err != nil {
		c.fail(opConnect, MsgConnectFailed, err)
		c.mu.Unlock()
		return err
	}
	c.state.Account = account
	c.mu.Unlock()

	c.log.Info().Str("account", account).Msg("wallet connected")
	if err := c.RefreshLoans(ctx); err != nil && !errors.Is(err, ErrStale) && !errors.Is(err, ErrClosed) {
		c.log.Debug().Err(err).Msg("initial loan refresh failed")
	}
	return nil
}

// RefreshLoans replaces the loan list with the directory's snapshot. On failure
// the previous list is kept.
func (c *Controller) RefreshLoans(ctx context.Context) error {
	cl, err := c.begin(ctx, opRefresh)
	if err != nil {
		return err
	}
	loans, err := c.directory.ListOpenLoans(cl.ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finish(cl) {
		return c.notApplied()
	}
	if err != nil {
		c.fail(opRefresh, MsgFetchFailed, err)
		return err
	}
	if loans == nil {
		loans = []loan.Loan{}
	}
	c.state.Loans = loans
	return nil
}

// SyncLoans is the background variant of RefreshLoans. It replaces the loan
// list on success and otherwise leaves state alone: Error and Loading are not
// touched. A user refresh started meanwhile wins.
func (c *Controller) SyncLoans(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	gen := c.gen[opRefresh]
	c.mu.Unlock()

	cctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.root, cancel)
	loans, err := c.directory.ListOpenLoans(cctx)
	stop()
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.gen[opRefresh] != gen {
		return ErrStale
	}
	if err != nil {
		c.log.Debug().Err(err).Msg("background loan sync failed")
		return err
	}
	if loans == nil {
		loans = []loan.Loan{}
	}
	c.state.Loans = loans
	return nil
}

// CreateLoan submits a new loan offer from the connected account. It does not
// refresh the loan list.
func (c *Controller) CreateLoan(ctx context.Context, principal, collateral string) (uint64, error) {
	cl, err := c.begin(ctx, opCreate)
	if err != nil {
		return 0, err
	}
	id, err := c.gateway.CreateLoan(cl.ctx, c.Account(), principal, collateral)
	c.settle(cl, MsgCreateFailed, err)
	return id, err
}

func (c *Controller) TakeLoan(ctx context.Context, loanID uint64, collateral string) (bool, error) {
	cl, err := c.begin(ctx, opTake)
	if err != nil {
		return false, err
	}
	ok, err := c.gateway.TakeLoan(cl.ctx, c.Account(), loanID, collateral)
	c.settle(cl, MsgTakeFailed, err)
	return ok, err
}

func (c *Controller) RepayLoan(ctx context.Context, loanID uint64, principal string) (bool, error) {
	cl, err := c.begin(ctx, opRepay)
	if err != nil {
		return false, err
	}
	ok, err := c.gateway.RepayLoan(cl.ctx, c.Account(), loanID, principal)
	c.settle(cl, MsgRepayFailed, err)
	return ok, err
}

// settle records a mutation's failure. The submission's own result is always
// returned to the caller; only the state update is subject to staleness.
func (c *Controller) settle(cl *call, msg string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finish(cl) || err == nil {
		return
	}
	c.fail(cl.op, msg, err)
}
