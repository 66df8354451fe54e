package consensus

import (
	"fmt"

	"github.com/zen-systems/quorumgate/pkg/provider"
)

// proposal pairs a response with its proposal key for the voting rounds.
type proposal struct {
	id       string
	response *provider.Response
}

// runQuorumPhased executes the three-round simplified PBFT protocol:
// propose, prepare, commit, then finalization. Quorum boundaries are
// inclusive: approved/total == MinimumAgreement passes.
func runQuorumPhased(s *session) *Result {
	// Propose: each response becomes a proposal keyed by its index.
	proposals := make([]proposal, len(s.responses))
	for i, resp := range s.responses {
		proposals[i] = proposal{
			id:       fmt.Sprintf("proposal_%d", i),
			response: resp,
		}
	}

	// Prepare: every provider votes on every other provider's proposal.
	prepareVotes := castVotes(s, proposals)
	total := len(prepareVotes)
	approved := countApprovals(prepareVotes)
	if !quorumMet(approved, total, s.opts.MinimumAgreement) {
		return failureResult(s, "insufficient_prepare_votes")
	}

	// Commit: only the prepare approvals carry over; quorum is recomputed
	// against the same vote total.
	commitVotes := approvalsOnly(prepareVotes)
	if !quorumMet(len(commitVotes), total, s.opts.MinimumAgreement) {
		return failureResult(s, "insufficient_commit_votes")
	}

	// Finalize: the approved proposal with the highest aggregate confidence
	// among its commit voters wins.
	winner, winnerConfidence := pickWinner(proposals, commitVotes)

	agreement := ratio(len(commitVotes), total)
	return &Result{
		Success:                true,
		ConsensusReached:       true,
		FinalResponse:          winner.response.Content,
		Confidence:             clamp01(winnerConfidence),
		ParticipatingProviders: s.participants(),
		AgreementScore:         clamp01(agreement),
		ResolutionMethod:       "pbft",
		Metadata: ResultMetadata{
			ConsensusTime: s.elapsed(),
			Iterations:    3,
			TotalCost:     s.totalCost(),
		},
	}
}

// castVotes generates one vote per (voter, proposal) pair, skipping each
// voter's own proposal. The vote is a deterministic agreement test: approve
// when the proposal's content is at least MinimumAgreement-similar to the
// voter's own answer.
func castVotes(s *session, proposals []proposal) []Vote {
	var votes []Vote
	for _, voter := range s.responses {
		for _, prop := range proposals {
			if prop.response == voter {
				continue
			}

			similarity := Jaccard(prop.response.Content, voter.Content)
			choice := VoteReject
			if similarity >= s.opts.MinimumAgreement {
				choice = VoteApprove
			}

			votes = append(votes, Vote{
				Voter:      voter.Provider,
				ProposalID: prop.id,
				Choice:     choice,
				Confidence: similarity,
				Reasoning:  fmt.Sprintf("content similarity %.2f against own answer", similarity),
			})
		}
	}
	return votes
}

func countApprovals(votes []Vote) int {
	approved := 0
	for _, vote := range votes {
		if vote.Choice == VoteApprove {
			approved++
		}
	}
	return approved
}

func approvalsOnly(votes []Vote) []Vote {
	var approvals []Vote
	for _, vote := range votes {
		if vote.Choice == VoteApprove {
			approvals = append(approvals, vote)
		}
	}
	return approvals
}

// quorumMet applies the inclusive quorum test.
func quorumMet(approved, total int, minimumAgreement float64) bool {
	if total == 0 {
		return false
	}
	return ratio(approved, total) >= minimumAgreement
}

func ratio(approved, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(approved) / float64(total)
}

// pickWinner selects the proposal with the highest summed commit-vote
// confidence. Ties keep the earlier proposal. The returned confidence is the
// mean commit-vote confidence on the winning proposal.
func pickWinner(proposals []proposal, commitVotes []Vote) (proposal, float64) {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, vote := range commitVotes {
		sums[vote.ProposalID] += vote.Confidence
		counts[vote.ProposalID]++
	}

	best := proposals[0]
	bestSum := -1.0
	for _, prop := range proposals {
		if counts[prop.id] == 0 {
			continue
		}
		if sums[prop.id] > bestSum {
			best = prop
			bestSum = sums[prop.id]
		}
	}

	if counts[best.id] == 0 {
		// No proposal received a commit vote; fall back to the first.
		return best, best.response.Confidence
	}
	return best, sums[best.id] / float64(counts[best.id])
}
