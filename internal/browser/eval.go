package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// escapeJS makes a raw string safe to embed inside a single-quoted JS
// literal. Line and paragraph separators are escaped too since they
// terminate JS string literals just like newlines.
var escapeJS = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
).Replace

type evaluateResult struct {
	Result struct {
		Type        string          `json:"type"`
		Value       json.RawMessage `json:"value"`
		Description string          `json:"description"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text      string `json:"text"`
		Exception *struct {
			Description string `json:"description"`
		} `json:"exception"`
	} `json:"exceptionDetails"`
}

// Evaluate runs an expression in the page, awaiting it if it is a promise,
// and returns the JSON-decoded value.
func (s *Session) Evaluate(ctx context.Context, expression string) (any, error) {
	raw, err := s.eval(ctx, expression)
	if err != nil || len(raw) == 0 {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("browser: decode evaluation value: %w", err)
	}
	return v, nil
}

func (s *Session) eval(ctx context.Context, expression string) (json.RawMessage, error) {
	var res evaluateResult
	err := s.call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expression,
		"returnByValue": true,
		"awaitPromise":  true,
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.ExceptionDetails != nil {
		text := res.ExceptionDetails.Text
		if res.ExceptionDetails.Exception != nil && res.ExceptionDetails.Exception.Description != "" {
			text = res.ExceptionDetails.Exception.Description
		}
		return nil, &EvaluationError{Text: text}
	}
	return res.Result.Value, nil
}

func (s *Session) evalInto(ctx context.Context, expression string, out any) error {
	raw, err := s.eval(ctx, expression)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("browser: decode evaluation value: %w", err)
	}
	return nil
}

// Exists reports whether the selector matches at least one element.
func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	err := s.evalInto(ctx,
		fmt.Sprintf(`document.querySelector('%s') !== null`, escapeJS(selector)),
		&found)
	return found, err
}

// Text returns innerText of the first element matching the selector, or an
// empty string when nothing matches.
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := s.evalInto(ctx, fmt.Sprintf(
		`(() => { const el = document.querySelector('%s'); return el ? el.innerText : ''; })()`,
		escapeJS(selector)), &text)
	return text, err
}

// TextAll returns innerText of every element matching the selector, in
// document order.
func (s *Session) TextAll(ctx context.Context, selector string) ([]string, error) {
	var texts []string
	err := s.evalInto(ctx, fmt.Sprintf(
		`Array.from(document.querySelectorAll('%s')).map((el) => el.innerText)`,
		escapeJS(selector)), &texts)
	return texts, err
}

// Attribute returns the named attribute of the first matching element, or
// an empty string when the element or attribute is absent.
func (s *Session) Attribute(ctx context.Context, selector, name string) (string, error) {
	var value string
	err := s.evalInto(ctx, fmt.Sprintf(
		`(() => { const el = document.querySelector('%s'); if (!el) return ''; const v = el.getAttribute('%s'); return v === null ? '' : v; })()`,
		escapeJS(selector), escapeJS(name)), &value)
	return value, err
}

// Click dispatches a click on the first matching element.
func (s *Session) Click(ctx context.Context, selector string) error {
	var clicked bool
	err := s.evalInto(ctx, fmt.Sprintf(
		`(() => { const el = document.querySelector('%s'); if (!el) return false; el.click(); return true; })()`,
		escapeJS(selector)), &clicked)
	if err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("browser: click %q: no matching element", selector)
	}
	return nil
}

// Type sets the value of the first matching input and fires input and
// change events so framework bindings pick the new value up.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	var typed bool
	err := s.evalInto(ctx, fmt.Sprintf(
		`(() => { const el = document.querySelector('%s'); if (!el) return false; el.focus(); el.value = '%s'; el.dispatchEvent(new Event('input', { bubbles: true })); el.dispatchEvent(new Event('change', { bubbles: true })); return true; })()`,
		escapeJS(selector), escapeJS(text)), &typed)
	if err != nil {
		return err
	}
	if !typed {
		return fmt.Errorf("browser: type into %q: no matching element", selector)
	}
	return nil
}

// Content returns the full serialized HTML of the page.
func (s *Session) Content(ctx context.Context) (string, error) {
	var html string
	err := s.evalInto(ctx, `document.documentElement.outerHTML`, &html)
	return html, err
}

// URL returns the page's current location.
func (s *Session) URL(ctx context.Context) (string, error) {
	var url string
	err := s.evalInto(ctx, `window.location.href`, &url)
	return url, err
}
