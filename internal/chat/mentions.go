package chat

import "regexp"

var mentionPattern = regexp.MustCompile(`\B@(\w+)`)

// ExtractMentions returns the unique @-mentioned tokens in content, in
// order of first appearance. Tokens are purely textual; they are not
// resolved against registered users.
func ExtractMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	mentions := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		mentions = append(mentions, m[1])
	}

	return mentions
}
