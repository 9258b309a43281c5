package voting

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	interfaces "github.com/sheikh-saqib/dao-treasury-ledger/internal/interfaces"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models/events"
)

// Registry stores proposals and their pro/con tallies. Creating and voting
// need a DAO reference. When an organization with a membership check lives
// at that address only its members pass; any other address lets every
// non-zero account through. Closing is reserved to the registry owner and
// the proposer.
type Registry struct {
	store      interfaces.ProposalStore
	resolver   interfaces.MembershipResolver
	owner      models.Account
	publisher  interfaces.EventPublisher
	logger     *slog.Logger
	now        func() time.Time
	singleVote bool

	mu sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithPublisher sets where committed changes are announced.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(r *Registry) { r.publisher = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithSingleVote rejects a second vote by the same account on one proposal.
// Without it every call to VoteOnProposal counts.
func WithSingleVote() Option {
	return func(r *Registry) { r.singleVote = true }
}

// New creates a Registry owned by owner that resolves its DAO reference
// through resolver.
func New(ctx context.Context, store interfaces.ProposalStore, owner models.Account, resolver interfaces.MembershipResolver, opts ...Option) (*Registry, error) {
	if models.IsZeroAccount(owner) {
		return nil, ErrZeroOwner
	}
	if resolver == nil {
		return nil, ErrNoResolver
	}

	r := &Registry{
		store:    store,
		resolver: resolver,
		owner:    owner,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	state, err := store.Bootstrap(ctx, models.RegistryState{
		Owner:          owner,
		NextProposalID: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "bootstrap registry")
	}
	if state.Owner != owner {
		return nil, errors.Wrapf(ErrOwnerMismatch, "stored owner %s", state.Owner.Hex())
	}
	return r, nil
}

// Owner returns the account allowed to set the DAO reference.
func (r *Registry) Owner() models.Account {
	return r.owner
}

// SetDAOContract points the registry at the organization whose members may
// propose and vote. The address is not checked for a membership capability.
func (r *Registry) SetDAOContract(ctx context.Context, caller, reference models.Account) error {
	if caller != r.owner {
		return ErrUnauthorized
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.SetDAOReference(ctx, reference); err != nil {
		return errors.Wrap(err, "save DAO reference")
	}

	r.logger.Info("DAO reference set", slog.String("reference", reference.Hex()))
	r.publish(ctx, events.TopicReferenceSet, events.ReferenceSet{
		EventID:    uuid.New().String(),
		Reference:  reference,
		OccurredAt: r.now(),
	})
	return nil
}

// MyDAO returns the current DAO reference, the zero account when unset.
func (r *Registry) MyDAO(ctx context.Context) (models.Account, error) {
	state, err := r.store.LoadState(ctx)
	if err != nil {
		return models.Account{}, errors.Wrap(err, "load registry state")
	}
	return state.DAOReference, nil
}

// CreateProposal stores an active proposal with zero tallies under the next
// id. Ids start at 1 and are never reused.
func (r *Registry) CreateProposal(ctx context.Context, caller models.Account, description string) (models.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMember(ctx, caller); err != nil {
		return models.Proposal{}, err
	}

	proposal, err := r.store.CreateProposal(ctx, models.Proposal{
		Description: description,
		Proposer:    caller,
		Active:      true,
		CreatedAt:   r.now(),
	})
	if err != nil {
		return models.Proposal{}, errors.Wrap(err, "save proposal")
	}

	r.logger.Info("proposal created",
		slog.Uint64("proposal_id", proposal.ID),
		slog.String("proposer", caller.Hex()),
	)
	r.publish(ctx, events.TopicProposalCreated, events.ProposalCreated{
		EventID:     uuid.New().String(),
		ProposalID:  proposal.ID,
		Proposer:    caller,
		Description: description,
		OccurredAt:  proposal.CreatedAt,
	})
	return proposal, nil
}

// Proposal returns the proposal stored under id.
func (r *Registry) Proposal(ctx context.Context, id uint64) (models.Proposal, error) {
	return r.load(ctx, id)
}

// Proposals returns every proposal in id order.
func (r *Registry) Proposals(ctx context.Context) ([]models.Proposal, error) {
	proposals, err := r.store.ListProposals(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list proposals")
	}
	return proposals, nil
}

// VoteOnProposal adds one pro vote when support is true, one con vote otherwise.
func (r *Registry) VoteOnProposal(ctx context.Context, caller models.Account, id uint64, support bool) (models.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMember(ctx, caller); err != nil {
		return models.Proposal{}, err
	}
	proposal, err := r.load(ctx, id)
	if err != nil {
		return models.Proposal{}, err
	}
	if !proposal.Active {
		return models.Proposal{}, ErrClosed
	}
	if r.singleVote {
		voted, err := r.store.HasVoted(ctx, id, caller)
		if err != nil {
			return models.Proposal{}, errors.Wrap(err, "check vote")
		}
		if voted {
			return models.Proposal{}, ErrAlreadyVoted
		}
	}

	vote := models.Vote{
		ProposalID: id,
		Voter:      caller,
		Support:    support,
		CastAt:     r.now(),
	}
	if err := r.store.RecordVote(ctx, vote); err != nil {
		return models.Proposal{}, errors.Wrap(err, "save vote")
	}
	if support {
		proposal.VotesPro++
	} else {
		proposal.VotesCon++
	}

	r.logger.Info("vote cast",
		slog.Uint64("proposal_id", id),
		slog.String("voter", caller.Hex()),
		slog.Bool("support", support),
	)
	r.publish(ctx, events.TopicVoteCast, events.VoteCast{
		EventID:    uuid.New().String(),
		ProposalID: id,
		Voter:      caller,
		Support:    support,
		OccurredAt: vote.CastAt,
	})
	return proposal, nil
}

// CloseProposal ends voting on a proposal. Only the registry owner and the
// proposer may close it, and only once.
func (r *Registry) CloseProposal(ctx context.Context, caller models.Account, id uint64) (models.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	proposal, err := r.load(ctx, id)
	if err != nil {
		return models.Proposal{}, err
	}
	if caller != r.owner && caller != proposal.Proposer {
		return models.Proposal{}, ErrUnauthorized
	}
	if !proposal.Active {
		return models.Proposal{}, ErrAlreadyClosed
	}

	closedAt := r.now()
	proposal.Active = false
	proposal.ClosedAt = &closedAt
	if err := r.store.CloseProposal(ctx, proposal); err != nil {
		return models.Proposal{}, errors.Wrap(err, "save closed proposal")
	}

	r.logger.Info("proposal closed", slog.Uint64("proposal_id", id), slog.String("closed_by", caller.Hex()))
	r.publish(ctx, events.TopicProposalClosed, events.ProposalClosed{
		EventID:    uuid.New().String(),
		ProposalID: id,
		ClosedBy:   caller,
		OccurredAt: closedAt,
	})
	return proposal, nil
}

// checkMember authorizes caller against the DAO reference. An unset
// reference authorizes nobody. A reference with no membership check behind
// it, such as a plain account, authorizes any non-zero caller.
func (r *Registry) checkMember(ctx context.Context, caller models.Account) error {
	state, err := r.store.LoadState(ctx)
	if err != nil {
		return errors.Wrap(err, "load registry state")
	}
	if models.IsZeroAccount(state.DAOReference) {
		return errors.Wrap(ErrUnauthorized, ErrNoReference.Error())
	}
	if models.IsZeroAccount(caller) {
		return ErrUnauthorized
	}

	checker, ok := r.resolver.Resolve(state.DAOReference)
	if !ok {
		r.logger.Debug("DAO reference has no membership check",
			slog.String("reference", state.DAOReference.Hex()),
			slog.String("caller", caller.Hex()),
		)
		return nil
	}
	member, err := checker.IsMember(ctx, caller)
	if err != nil {
		return errors.Wrap(err, "check membership")
	}
	if !member {
		return ErrUnauthorized
	}
	return nil
}

func (r *Registry) load(ctx context.Context, id uint64) (models.Proposal, error) {
	proposal, err := r.store.GetProposal(ctx, id)
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		return models.Proposal{}, ErrNotFound
	}
	if err != nil {
		return models.Proposal{}, errors.Wrap(err, "load proposal")
	}
	return proposal, nil
}

func (r *Registry) publish(ctx context.Context, topic string, event any) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, topic, event); err != nil {
		r.logger.Warn("failed to publish event", slog.String("topic", topic), slog.String("error", err.Error()))
	}
}
