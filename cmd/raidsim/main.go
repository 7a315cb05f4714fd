// Command raidsim replays a synthetic member-join burst against
// internal/abuse/raid.Protector and reports whether/when the pattern
// analysis would trigger mitigation, so operators can tune Config
// thresholds before rolling them out.
//
// Grounded on the teacher's cmd/loadtest/main.go worker-pool-plus-stats-
// reporter shape, generalized here from escrow transaction throughput to
// a single sequential join-event stream (raid detection is inherently
// stateful per workspace, so joins are fed in order rather than
// concurrently, unlike the teacher's parallel transaction workers).
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/nchat/trustplane/internal/abuse/raid"
	"github.com/nchat/trustplane/internal/clock"
)

func main() {
	joins := flag.Int("joins", 200, "Number of member joins to simulate")
	windowMs := flag.Int64("window-ms", 60_000, "Rolling join window in milliseconds")
	intervalMs := flag.Int64("interval-ms", 150, "Average milliseconds between simulated joins")
	newAccountRatio := flag.Float64("new-account-ratio", 0.7, "Fraction of joiners with accounts younger than new-account-age-days")
	similarUsernameRatio := flag.Float64("similar-username-ratio", 0.5, "Fraction of joiners sharing a near-identical username pattern")
	singleInviteRatio := flag.Float64("single-invite-ratio", 0.8, "Fraction of joiners using the same invite code")
	velocityThreshold := flag.Int("velocity-threshold", 10, "mass_join trigger: joins within the window")
	velocityCritical := flag.Int("velocity-critical-threshold", 30, "critical severity trigger: joins within the window")
	autoLockdown := flag.Bool("auto-lockdown", true, "Enable auto-lockdown escalation")
	workspaceID := flag.String("workspace", "sim-workspace", "Workspace ID to simulate joins into")
	seed := flag.Int64("seed", 1, "Random seed for reproducible runs")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	c := clock.Real{}
	protector := raid.NewProtectorWithClock(raid.Config{
		WindowMs:                  *windowMs,
		VelocityThreshold:         *velocityThreshold,
		VelocityCriticalThreshold: *velocityCritical,
		AutoLockdownEnabled:       *autoLockdown,
		AutoLockdownThreshold:     raid.SeverityHigh,
		AutoLockdownLevel:         raid.LockdownFull,
		AutoLockdownDuration:      10 * time.Minute,
	}, c)

	slog.Info("starting raid simulation",
		"joins", *joins, "workspace", *workspaceID, "interval_ms", *intervalMs)

	var detectedAt int
	var lockdownAt int
	inviteCode := "invite_shared"

	for i := 0; i < *joins; i++ {
		e := raid.JoinEvent{
			UserID:         fmt.Sprintf("user_%d", i),
			Username:       simulateUsername(rng, *similarUsernameRatio, i),
			WorkspaceID:    *workspaceID,
			AccountCreated: simulateAccountAge(rng, *newAccountRatio, c.Now()),
			JoinedAt:       c.Now(),
		}
		if rng.Float64() < *singleInviteRatio {
			e.InviteCode = inviteCode
		} else {
			e.InviteCode = fmt.Sprintf("invite_%d", i)
		}

		result := protector.RecordJoin(e)
		if result.Analysis != nil && len(result.Analysis.RaidTypes) > 0 && detectedAt == 0 {
			detectedAt = i + 1
			slog.Warn("raid pattern detected",
				"at_join", detectedAt, "types", result.Analysis.RaidTypes, "severity", result.Analysis.Severity)
		}
		if level := protector.LockdownLevel(*workspaceID); level != raid.LockdownNone && lockdownAt == 0 {
			lockdownAt = i + 1
			slog.Warn("auto-lockdown engaged", "at_join", lockdownAt, "level", level)
		}

		// Simulate inter-arrival jitter without sleeping the whole run —
		// RecordJoin uses wall-clock time, so a real burst must actually
		// elapse for the rolling window to behave as configured.
		if *intervalMs > 0 {
			jitter := time.Duration(rng.Int63n(*intervalMs*2)) * time.Millisecond
			time.Sleep(jitter)
		}
	}

	printSummary(*joins, detectedAt, lockdownAt, protector.LockdownLevel(*workspaceID))
}

func simulateUsername(rng *rand.Rand, similarRatio float64, i int) string {
	if rng.Float64() < similarRatio {
		return fmt.Sprintf("raider%d", rng.Intn(5))
	}
	return fmt.Sprintf("member_%d_%d", i, rng.Intn(1_000_000))
}

func simulateAccountAge(rng *rand.Rand, newAccountRatio float64, now time.Time) time.Time {
	if rng.Float64() < newAccountRatio {
		return now.Add(-time.Duration(rng.Intn(3)) * 24 * time.Hour)
	}
	return now.Add(-time.Duration(30+rng.Intn(700)) * 24 * time.Hour)
}

func printSummary(totalJoins, detectedAt, lockdownAt int, finalLevel raid.LockdownLevel) {
	separator := "--------------------------------------------------------------"
	fmt.Println(separator)
	fmt.Println("RAID SIMULATION RESULTS")
	fmt.Println(separator)
	fmt.Printf("Total joins simulated:   %d\n", totalJoins)
	if detectedAt > 0 {
		fmt.Printf("Pattern detected at:     join #%d\n", detectedAt)
	} else {
		fmt.Println("Pattern detected at:     never")
	}
	if lockdownAt > 0 {
		fmt.Printf("Auto-lockdown at:        join #%d\n", lockdownAt)
	} else {
		fmt.Println("Auto-lockdown at:        never")
	}
	fmt.Printf("Final lockdown level:    %s\n", finalLevel)
	fmt.Println(separator)
}
