package resend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// ErrNoAudience is returned by contact calls when no audience id is set.
var ErrNoAudience = errors.New("resend: audience id not configured")

// Contact is an audience contact.
type Contact struct {
	Email        string `json:"email,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Unsubscribed bool   `json:"unsubscribed"`
}

type contactResponse struct {
	ID string `json:"id"`
}

func (c *Client) contactsPath(id string) (string, error) {
	if c.audienceID == "" {
		return "", ErrNoAudience
	}
	p := "/audiences/" + url.PathEscape(c.audienceID) + "/contacts"
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p, nil
}

// CreateContact adds a contact to the audience and returns its id.
func (c *Client) CreateContact(ctx context.Context, contact Contact) (string, error) {
	path, err := c.contactsPath("")
	if err != nil {
		return "", err
	}
	var resp contactResponse
	if err := c.doRequest(ctx, http.MethodPost, path, contact, &resp, ""); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdateContact patches the contact's name and subscription flag.
func (c *Client) UpdateContact(ctx context.Context, id string, contact Contact) error {
	path, err := c.contactsPath(id)
	if err != nil {
		return err
	}
	contact.Email = ""
	return c.doRequest(ctx, http.MethodPatch, path, contact, nil, "")
}

// DeleteContact removes the contact. A 404 counts as success.
func (c *Client) DeleteContact(ctx context.Context, id string) error {
	path, err := c.contactsPath(id)
	if err != nil {
		return err
	}
	err = c.doRequest(ctx, http.MethodDelete, path, nil, nil, "")
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}
