// SPDX-License-Identifier: AGPL-3.0-or-later

// Package classify labels commits as security-relevant from their messages.
package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bartekus/vcgen/internal/domain"
)

type pattern struct {
	re   *regexp.Regexp
	rank int
}

func rx(rank int, expr string) pattern {
	return pattern{re: regexp.MustCompile(`(?i)` + expr), rank: rank}
}

// Rank 3 patterns identify a reported vulnerability outright.
// Rank 2 patterns name a concrete weakness class.
// Rank 1 patterns are loose security vocabulary.
var patterns = []pattern{
	rx(3, `\bCVE-\d{4}-\d{4,}\b`),
	rx(3, `\bCWE-\d+\b`),
	rx(3, `\bGHSA(-[23456789cfghjmpqrvwx]{4}){3}\b`),
	rx(3, `\bsecurity (fix|issue|bug|vulnerability|advisory)\b`),
	rx(3, `\bvulnerabilit(y|ies)\b`),
	rx(3, `\b(heap|stack|global)[- ]buffer[- ]overflow\b`),
	rx(3, `\buse[- ]after[- ]free\b`),

	rx(2, `\b(buffer|integer|stack|heap) (over|under)flow\b`),
	rx(2, `\bout[- ]of[- ]bounds?\b`),
	rx(2, `\bdouble[- ]free\b`),
	rx(2, `\bnull (pointer )?deref(erence)?\b`),
	rx(2, `\b(sql|command|code) injection\b`),
	rx(2, `\bxss\b`),
	rx(2, `\brace condition\b`),
	rx(2, `\bmemory (leak|corruption)\b`),
	rx(2, `\bdenial[- ]of[- ]service\b`),
	rx(2, `\bformat string\b`),
	rx(2, `\b(un)?sanitiz(e|ed|ation)\b`),

	rx(1, `\bsecurity\b`),
	rx(1, `\bexploit(s|able|ed)?\b`),
	rx(1, `\bunsafe\b`),
	rx(1, `\bcrash(es|ed|ing)?\b`),
	rx(1, `\bsegfault\b`),
	rx(1, `\bleak(s|ed|ing)?\b`),
	rx(1, `\bbounds check(s|ing)?\b`),
	rx(1, `\boverflow\b`),
	rx(1, `\bfuzz(er|ing|ed)?\b`),
	rx(1, `\b(asan|ubsan|msan)\b`),
}

// Classify reports whether commit is security-relevant under policy.
//
// A message matches a policy when any pattern of rank >= policy.Rank() hits,
// so everything that passes Strong also passes Medium and Low. Empty and
// invalid UTF-8 messages never match.
func Classify(commit domain.CommitRecord, policy Policy) bool {
	return MessageRank(commit.Message) >= policy.Rank() && policy.Valid()
}

// MessageRank returns the highest pattern rank that matches msg, or zero.
func MessageRank(msg string) int {
	if strings.TrimSpace(msg) == "" || !utf8.ValidString(msg) {
		return 0
	}
	best := 0
	for _, p := range patterns {
		if p.rank <= best {
			continue
		}
		if p.re.MatchString(msg) {
			best = p.rank
			if best == PolicyStrong.Rank() {
				break
			}
		}
	}
	return best
}
