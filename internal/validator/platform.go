package validator

import (
	"strings"

	"jusdown/internal/entity"
)

// platformHosts lists the url fragments that identify each platform.
var platformHosts = map[entity.Platform][]string{
	entity.PlatformYouTube:     {"youtube.com", "youtu.be"},
	entity.PlatformInstagram:   {"instagram.com"},
	entity.PlatformFacebook:    {"facebook.com", "fb.watch"},
	entity.PlatformTikTok:      {"tiktok.com"},
	entity.PlatformDailymotion: {"dailymotion.com"},
	entity.PlatformTwitter:     {"twitter.com", "x.com"},
	entity.PlatformVimeo:       {"vimeo.com"},
}

var platformAliases = map[string]entity.Platform{
	"x":         entity.PlatformTwitter,
	"x-twitter": entity.PlatformTwitter,
}

// videoOnly platforms never serve image posts.
var videoOnly = map[entity.Platform]bool{
	entity.PlatformYouTube:     true,
	entity.PlatformVimeo:       true,
	entity.PlatformDailymotion: true,
}

// CanonicalPlatform resolves a case-insensitive platform name or alias.
func CanonicalPlatform(raw string) (entity.Platform, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return "", false
	}

	if p, ok := platformAliases[name]; ok {
		return p, true
	}

	for p := range platformHosts {
		if strings.ToLower(string(p)) == name {
			return p, true
		}
	}

	return "", false
}

// IsYouTube reports whether a request targets YouTube: by its platform when
// the platform is known, by its url otherwise.
func IsYouTube(platform, url string) bool {
	if p, ok := CanonicalPlatform(platform); ok {
		return p == entity.PlatformYouTube
	}

	return MatchesURL(entity.PlatformYouTube, url)
}

// MatchesURL reports whether url contains one of p's host fragments.
func MatchesURL(p entity.Platform, url string) bool {
	lower := strings.ToLower(url)

	for _, host := range platformHosts[p] {
		if strings.Contains(lower, host) {
			return true
		}
	}

	return false
}
