package reconciler

import (
	"context"
	"sort"

	"offersync/internal/member"
	"offersync/internal/remote"
	"offersync/pkg/logging"
)

const reasonReportedEarlier = "reported by an earlier response"

// resolution is the settled state of one batch. Branches of a bisection each
// return their own resolution and the caller merges them.
type resolution struct {
	applied []member.Member
	skipped []SkippedMember
	failed  []FailedMember
	// reported holds every member id the remote named explicitly, including
	// ids outside the batch, so later batches can leave them out.
	reported []member.Member
	calls    int
}

func (r resolution) merge(o resolution) resolution {
	return resolution{
		applied:  append(append([]member.Member{}, r.applied...), o.applied...),
		skipped:  append(append([]SkippedMember{}, r.skipped...), o.skipped...),
		failed:   append(append([]FailedMember{}, r.failed...), o.failed...),
		reported: append(append([]member.Member{}, r.reported...), o.reported...),
		calls:    r.calls + o.calls,
	}
}

// Apply sends members in batches and settles every member as applied,
// skipped or failed. Members an earlier response named explicitly are not
// sent again. When ctx is done no further batches are issued and the
// remaining members are recorded as failed.
func (m *Mutator) Apply(ctx context.Context, remoteID string, op Operation, members []member.Member) OperationResult {
	result := OperationResult{
		Operation: op,
		Requested: append([]member.Member{}, members...),
		Applied:   []member.Member{},
	}
	known := member.NewSet()

	batches := member.Chunk(members, m.cfg.batchSize(op))
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			reason := canceledOutcome(err).Reason
			for _, rest := range batches[i:] {
				result.Failed = append(result.Failed, failAll(rest, reason)...)
			}
			logging.Warn("Mutator", "%s %s: stopped before batch %d/%d: %v", op, remoteID, i+1, len(batches), err)
			break
		}

		send := batch
		if known.Len() > 0 {
			send = member.Without(batch, known)
			for _, id := range batch {
				if known.Has(id) {
					result.Skipped = append(result.Skipped, SkippedMember{Member: id, Reason: reasonReportedEarlier})
				}
			}
		}
		if len(send) == 0 {
			continue
		}

		res := m.resolveBatch(ctx, remoteID, op, send)
		result.Applied = append(result.Applied, res.applied...)
		result.Skipped = append(result.Skipped, res.skipped...)
		result.Failed = append(result.Failed, res.failed...)
		result.Calls += res.calls
		for _, id := range res.reported {
			known.Add(id)
		}
		logging.Debug("Mutator", "%s %s batch %d/%d: %d applied, %d skipped, %d failed",
			op, remoteID, i+1, len(batches), len(res.applied), len(res.skipped), len(res.failed))
	}

	member.Sort(result.Applied)
	sort.SliceStable(result.Skipped, func(i, j int) bool { return result.Skipped[i].Member < result.Skipped[j].Member })
	sort.SliceStable(result.Failed, func(i, j int) bool { return result.Failed[i].Member < result.Failed[j].Member })

	m.metrics.RecordMembers(op, len(result.Applied), len(result.Skipped), len(result.Failed))
	return result
}

// resolveBatch submits batch and settles its members.
func (m *Mutator) resolveBatch(ctx context.Context, remoteID string, op Operation, batch []member.Member) resolution {
	out, calls := m.Submit(ctx, remoteID, op, batch)
	res := m.settle(ctx, remoteID, op, batch, out)
	res.calls += calls
	return res
}

func (m *Mutator) settle(ctx context.Context, remoteID string, op Operation, batch []member.Member, out Outcome) resolution {
	switch out.Kind {
	case OutcomeSuccess:
		return succeeded(batch, out.Response.Body)
	case OutcomeValidation:
		return m.isolate(ctx, remoteID, op, batch, out)
	default:
		return resolution{failed: failAll(batch, out.Reason)}
	}
}

// isolate finds the members responsible for a validation rejection. Members
// the body names explicitly are stripped and the remainder is retried once;
// names under failed_variant_ids count as failed, the others as skipped;
// otherwise, or if the remainder is rejected too, the batch is bisected and
// each half goes through the full submit path again. A single member that is
// still rejected is skipped.
func (m *Mutator) isolate(ctx context.Context, remoteID string, op Operation, batch []member.Member, out Outcome) resolution {
	var res resolution

	body := remote.DecodeBody(out.Response.Body)
	if body.HasIDs() {
		failedIDs := body.Kind == remote.BodyFailed
		if !failedIDs {
			res.reported = body.IDs
		}
		named := member.NewSet(body.IDs...)
		remainder := member.Without(batch, named)
		if len(remainder) < len(batch) {
			reason := explicitReason(body)
			for _, id := range batch {
				switch {
				case !named.Has(id):
				case failedIDs:
					res.failed = append(res.failed, FailedMember{Member: id, Error: failedReportReason})
				default:
					res.skipped = append(res.skipped, SkippedMember{Member: id, Reason: reason})
				}
			}
			if len(remainder) == 0 {
				return res
			}

			logging.Debug("Resolver", "%s %s: stripped %d reported members, retrying %d",
				op, remoteID, len(batch)-len(remainder), len(remainder))
			retry, calls := m.Submit(ctx, remoteID, op, remainder)
			res.calls += calls
			if retry.Kind != OutcomeValidation {
				return res.merge(m.settle(ctx, remoteID, op, remainder, retry))
			}
			batch, out = remainder, retry
		}
	}

	if len(batch) == 1 {
		logging.Info("Resolver", "%s %s: member %s rejected: %s", op, remoteID, batch[0], out.Reason)
		res.skipped = append(res.skipped, SkippedMember{Member: batch[0], Reason: out.Reason})
		return res
	}

	mid := len(batch) / 2
	logging.Debug("Resolver", "%s %s: bisecting %d members into %d + %d", op, remoteID, len(batch), mid, len(batch)-mid)
	left := m.resolveBatch(ctx, remoteID, op, batch[:mid])
	right := m.resolveBatch(ctx, remoteID, op, batch[mid:])
	return res.merge(left).merge(right)
}

// succeeded settles a batch accepted with 2xx. The body may still flag some
// members as skipped or failed.
func succeeded(batch []member.Member, body []byte) resolution {
	skippedIDs, failedIDs := remote.SuccessFlags(body)
	if len(skippedIDs) == 0 && len(failedIDs) == 0 {
		return resolution{applied: append([]member.Member{}, batch...)}
	}

	skipped := member.NewSet(skippedIDs...)
	failed := member.NewSet(failedIDs...)
	res := resolution{reported: skippedIDs}
	for _, id := range batch {
		switch {
		case failed.Has(id):
			res.failed = append(res.failed, FailedMember{Member: id, Error: failedReportReason})
		case skipped.Has(id):
			res.skipped = append(res.skipped, SkippedMember{Member: id, Reason: "skipped_invalid"})
		default:
			res.applied = append(res.applied, id)
		}
	}
	return res
}

// failedReportReason marks members the remote listed in failed_variant_ids.
const failedReportReason = "reported in failed_variant_ids"

func failAll(batch []member.Member, reason string) []FailedMember {
	out := make([]FailedMember, 0, len(batch))
	for _, id := range batch {
		out = append(out, FailedMember{Member: id, Error: reason})
	}
	return out
}

func explicitReason(body remote.Body) string {
	switch body.Kind {
	case remote.BodyExisting:
		return "existing_variants"
	case remote.BodySkipped:
		return "skipped_invalid"
	case remote.BodyFailed:
		return "failed_variant_ids"
	default:
		return body.Kind.String()
	}
}
