package raid

// levenshtein computes edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = minOf3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func minOf3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// unionFind clusters usernames by edit-distance-k equivalence: any two
// usernames within k edits of each other fall into the same class. Returns
// the size of the largest equivalence class.
func largestSimilarUsernameCluster(usernames []string, k int) int {
	n := len(usernames)
	if n == 0 {
		return 0
	}
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if levenshtein(usernames[i], usernames[j]) <= k {
				union(i, j)
			}
		}
	}
	counts := make(map[int]int)
	best := 0
	for i := 0; i < n; i++ {
		root := find(i)
		counts[root]++
		if counts[root] > best {
			best = counts[root]
		}
	}
	return best
}

// analyzeJoinPatterns computes the multi-signal analysis over a set of join
// events already filtered to the active rolling window.
func analyzeJoinPatterns(events []JoinEvent, now int64, cfg Config) Analysis {
	n := len(events)
	a := Analysis{JoinVelocity: n}
	if n == 0 {
		return a
	}

	newAccountCutoffMs := int64(cfg.NewAccountAgeDays) * 24 * 60 * 60 * 1000
	newAccounts := 0
	inviteUses := make(map[string]int)
	usernames := make([]string, 0, n)
	for _, e := range events {
		ageMs := now - e.AccountCreated.UnixMilli()
		if ageMs <= newAccountCutoffMs {
			newAccounts++
		}
		if e.InviteCode != "" {
			inviteUses[e.InviteCode]++
		}
		usernames = append(usernames, e.Username)
	}
	a.NewAccountPercentage = float64(newAccounts) / float64(n)

	topInviteCount := 0
	for _, count := range inviteUses {
		if count > topInviteCount {
			topInviteCount = count
		}
	}
	if len(inviteUses) > 0 {
		a.SingleSourcePercentage = float64(topInviteCount) / float64(n)
	}

	a.SimilarUsernames = largestSimilarUsernameCluster(usernames, cfg.UsernameEditDistance)

	var types []RaidType
	if a.NewAccountPercentage >= cfg.NewAccountThreshold {
		types = append(types, RaidAccountWave)
	}
	if a.SingleSourcePercentage >= cfg.SingleSourceThreshold {
		types = append(types, RaidInviteAbuse)
	}
	if len(types) >= 2 {
		types = []RaidType{RaidCoordinatedAttack}
	} else if n >= cfg.VelocityThreshold && len(types) == 0 {
		types = []RaidType{RaidMassJoin}
	}
	a.RaidTypes = types

	switch {
	case n >= cfg.VelocityCriticalThreshold:
		a.Severity = SeverityCritical
	case n >= cfg.VelocityThreshold*2:
		a.Severity = SeverityHigh
	case n >= cfg.VelocityThreshold:
		a.Severity = SeverityMedium
	default:
		a.Severity = SeverityLow
	}
	return a
}

func severityRank(s Severity) int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}
