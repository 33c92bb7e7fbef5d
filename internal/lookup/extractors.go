package lookup

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/0xjcr/chrome-osint-extension/internal/browser"
)

// DefaultExtractors returns the built-in sources, optionally filtered to
// the named subset. An empty filter keeps everything.
func DefaultExtractors(sources []string) []Extractor {
	all := []Extractor{
		&githubExtractor{},
		&redditExtractor{},
		&keybaseExtractor{},
	}
	if len(sources) == 0 {
		return all
	}
	wanted := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		wanted[strings.ToLower(s)] = struct{}{}
	}
	var filtered []Extractor
	for _, ext := range all {
		if _, ok := wanted[ext.Name()]; ok {
			filtered = append(filtered, ext)
		}
	}
	return filtered
}

// withSession opens a fresh page session, runs fn, and always closes the
// session exactly once regardless of outcome.
func withSession(ctx context.Context, sessions Opener, fn func(*browser.Session) error) error {
	sess, err := sessions.Open(ctx)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)
	return fn(sess)
}

type githubExtractor struct{}

func (e *githubExtractor) Name() string { return "github" }

func (e *githubExtractor) Extract(ctx context.Context, sessions Opener, username string) (map[string]string, error) {
	fields := make(map[string]string)
	err := withSession(ctx, sessions, func(sess *browser.Session) error {
		profile := "https://github.com/" + url.PathEscape(username)
		if err := sess.Goto(ctx, profile, browser.GotoOptions{}); err != nil {
			return err
		}
		if err := sess.WaitForSelector(ctx, "main", browser.WaitOptions{}); err != nil {
			return err
		}

		missing, err := sess.Exists(ctx, `img[alt='404 “This is not the web page you are looking for”']`)
		if err != nil {
			return err
		}
		title, err := sess.Text(ctx, "title")
		if err != nil {
			return err
		}
		if missing || strings.Contains(title, "Page not found") {
			return fmt.Errorf("no github account %q", username)
		}

		name, err := sess.Text(ctx, ".p-name")
		if err != nil {
			return err
		}
		bio, err := sess.Text(ctx, ".p-note")
		if err != nil {
			return err
		}
		avatar, err := sess.Attribute(ctx, "img.avatar-user", "src")
		if err != nil {
			return err
		}
		orgs, err := sess.TextAll(ctx, "a[data-hovercard-type='organization']")
		if err != nil {
			return err
		}

		fields["url"] = profile
		fields["name"] = strings.TrimSpace(name)
		fields["bio"] = strings.TrimSpace(bio)
		fields["avatar"] = avatar
		if len(orgs) > 0 {
			fields["organizations"] = strings.Join(orgs, ", ")
		}
		fillPageMeta(ctx, sess, fields)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

type redditExtractor struct{}

func (e *redditExtractor) Name() string { return "reddit" }

func (e *redditExtractor) Extract(ctx context.Context, sessions Opener, username string) (map[string]string, error) {
	fields := make(map[string]string)
	err := withSession(ctx, sessions, func(sess *browser.Session) error {
		profile := "https://old.reddit.com/user/" + url.PathEscape(username)
		if err := sess.Goto(ctx, profile, browser.GotoOptions{}); err != nil {
			return err
		}

		missing, err := sess.Exists(ctx, "#classy-error")
		if err != nil {
			return err
		}
		title, err := sess.Text(ctx, "title")
		if err != nil {
			return err
		}
		if missing || strings.Contains(title, "page not found") {
			return fmt.Errorf("no reddit account %q", username)
		}
		if err := sess.WaitForSelector(ctx, ".titlebox", browser.WaitOptions{}); err != nil {
			return err
		}

		karma, err := sess.Text(ctx, ".karma")
		if err != nil {
			return err
		}
		age, err := sess.Attribute(ctx, ".age time", "datetime")
		if err != nil {
			return err
		}
		trophies, err := sess.TextAll(ctx, ".trophy-name")
		if err != nil {
			return err
		}

		fields["url"] = profile
		fields["post_karma"] = strings.TrimSpace(karma)
		fields["created_at"] = age
		if len(trophies) > 0 {
			fields["trophies"] = strings.Join(trophies, ", ")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

type keybaseExtractor struct{}

func (e *keybaseExtractor) Name() string { return "keybase" }

func (e *keybaseExtractor) Extract(ctx context.Context, sessions Opener, username string) (map[string]string, error) {
	fields := make(map[string]string)
	err := withSession(ctx, sessions, func(sess *browser.Session) error {
		profile := "https://keybase.io/" + url.PathEscape(username)
		if err := sess.Goto(ctx, profile, browser.GotoOptions{}); err != nil {
			return err
		}

		// Keybase renders profiles client side, so poll until either the
		// profile heading or the 404 marker shows up.
		if err := sess.WaitForSelector(ctx, ".profile-heading, .four-oh-four", browser.WaitOptions{}); err != nil {
			return err
		}
		missing, err := sess.Exists(ctx, ".four-oh-four")
		if err != nil {
			return err
		}
		if missing {
			return fmt.Errorf("no keybase account %q", username)
		}

		fullName, err := sess.Text(ctx, ".profile-heading .full-name")
		if err != nil {
			return err
		}
		proofs, err := sess.TextAll(ctx, ".proof-display .service-name")
		if err != nil {
			return err
		}
		location, err := sess.Text(ctx, ".profile-heading .location")
		if err != nil {
			return err
		}

		fields["url"] = profile
		fields["full_name"] = strings.TrimSpace(fullName)
		fields["location"] = strings.TrimSpace(location)
		if len(proofs) > 0 {
			fields["proofs"] = strings.Join(proofs, ", ")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

// fillPageMeta folds the page's og: metadata into fields under meta_ keys.
// Extraction failures here are not fatal; the scraped fields stand alone.
func fillPageMeta(ctx context.Context, sess *browser.Session, fields map[string]string) {
	html, err := sess.Content(ctx)
	if err != nil {
		return
	}
	meta, err := ParsePageMeta(html)
	if err != nil {
		return
	}
	if meta.Title != "" {
		fields["meta_title"] = meta.Title
	}
	for _, key := range []string{"og:title", "og:description", "og:image"} {
		if v, ok := meta.Meta[key]; ok && v != "" {
			fields["meta_"+strings.TrimPrefix(key, "og:")] = v
		}
	}
}
