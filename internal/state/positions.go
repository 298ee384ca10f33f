package state

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"marketmirror/internal/model"
)

// Positions owns the trader's position snapshots and the pending-basis set:
// the contracts whose realized cost cannot currently be trusted. Not safe
// for concurrent use; the engine serializes access.
type Positions struct {
	byContract   map[int64]*model.Position
	pendingBasis map[int64]struct{}
	log          zerolog.Logger
}

func NewPositions(log zerolog.Logger) *Positions {
	p := &Positions{log: log}
	p.Clear()
	return p
}

func (p *Positions) Clear() {
	p.byContract = make(map[int64]*model.Position)
	p.pendingBasis = make(map[int64]struct{})
}

// Get returns the tracked position for a contract.
func (p *Positions) Get(contractID int64) (*model.Position, bool) {
	pos, ok := p.byContract[contractID]
	return pos, ok
}

// Set stores a position snapshot wholesale.
func (p *Positions) Set(pos model.Position) {
	stored := pos
	p.byContract[pos.ContractID] = &stored
}

// ContractIDs returns the contracts with a tracked position, sorted.
func (p *Positions) ContractIDs() []int64 {
	out := make([]int64, 0, len(p.byContract))
	for id := range p.byContract {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ApplyUpdate reconciles one feed position update in place. Returns whether
// the position was newly inserted and whether its size changed, the
// signals the reconciler batches on. Updates for untracked flat positions
// are ignored.
func (p *Positions) ApplyUpdate(update model.PositionUpdate) (isNew, sizeChanged bool) {
	pos, ok := p.byContract[update.ContractID]
	if ok {
		if pos.MPID != "" && update.MPID != "" && pos.MPID != update.MPID {
			p.log.Warn().Int64("contract_id", update.ContractID).
				Str("stored_mpid", pos.MPID).Str("update_mpid", update.MPID).
				Msg("position update carries a different trader id")
		}
		sizeChanged = pos.Size != update.Size
		pos.Size = update.Size
		pos.ExercisedSize = update.ExercisedSize
		return false, sizeChanged
	}
	if update.Size == 0 && update.ExercisedSize == 0 {
		return false, false
	}
	p.byContract[update.ContractID] = &model.Position{
		ContractID:    update.ContractID,
		Size:          update.Size,
		ExercisedSize: update.ExercisedSize,
		MPID:          update.MPID,
	}
	return true, false
}

// ReplaceAll installs a freshly listed position set. A stored basis is
// carried over only when size and exercised size are unchanged; every
// position left without a basis for which wantBasis returns true joins the
// pending-basis set. Returns the contracts flagged.
func (p *Positions) ReplaceAll(positions []model.Position, wantBasis func(contractID int64) bool) []int64 {
	var flagged []int64
	for _, pos := range positions {
		incoming := pos
		if old, ok := p.byContract[incoming.ContractID]; ok && old.Basis != nil &&
			old.Size == incoming.Size && old.ExercisedSize == incoming.ExercisedSize {
			basis := *old.Basis
			incoming.Basis = &basis
		}
		p.byContract[incoming.ContractID] = &incoming
		if incoming.Basis == nil && wantBasis(incoming.ContractID) {
			p.MarkPendingBasis(incoming.ContractID)
			flagged = append(flagged, incoming.ContractID)
		}
	}
	return flagged
}

// SetBasis stores a replayed basis and clears the pending flag.
func (p *Positions) SetBasis(contractID, basis int64) {
	pos, ok := p.byContract[contractID]
	if !ok {
		return
	}
	stored := basis
	pos.Basis = &stored
	p.ClearPendingBasis(contractID)
}

// MarkPendingBasis flags a contract whose basis cannot be trusted.
func (p *Positions) MarkPendingBasis(contractID int64) {
	p.pendingBasis[contractID] = struct{}{}
}

// ClearPendingBasis drops the flag after a successful reconciliation.
func (p *Positions) ClearPendingBasis(contractID int64) {
	delete(p.pendingBasis, contractID)
}

// PendingBasis returns the flagged contracts, sorted.
func (p *Positions) PendingBasis() []int64 {
	out := make([]int64, 0, len(p.pendingBasis))
	for id := range p.pendingBasis {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FoldFills replays a position's complete fill history into a running
// (size, basis) pair. Buy-side fills add fee − rebate + premium to basis
// and the filled size to the running position; sell-side fills add
// fee − rebate − premium and subtract the filled size. A fill naming a
// different contract is a protocol violation.
func FoldFills(contractID int64, fills []model.Fill) (size, basis int64, err error) {
	for _, fill := range fills {
		if fill.ContractID != contractID {
			return 0, 0, fmt.Errorf("fill for contract %d in history of contract %d",
				fill.ContractID, contractID)
		}
		switch fill.Side {
		case "bid":
			basis += fill.Fee - fill.Rebate + fill.Premium
			size += fill.FilledSize
		case "ask":
			basis += fill.Fee - fill.Rebate - fill.Premium
			size -= fill.FilledSize
		default:
			return 0, 0, fmt.Errorf("fill with unknown side %q on contract %d",
				fill.Side, contractID)
		}
	}
	return size, basis, nil
}
