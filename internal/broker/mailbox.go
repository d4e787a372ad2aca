package broker

// MailboxCredentials is an opaque bag of secondary-identity credentials
// (e.g. OAuth2 client id/secret/refresh token for a bound mailbox). The
// broker never interprets its contents; it only binds a mailbox id to a
// token and hands the credentials to whichever handler asks for them.
type MailboxCredentials map[string]string

// MailboxDirectory is the process-init-time, immutable store of mailbox
// credentials keyed by mailbox id, split out of TokenPolicy per the
// "global API keys dict that also stores mailbox bindings" re-architecture
// note: tokens reference a mailbox only by id, never carry its credentials.
type MailboxDirectory struct {
	mailboxes map[string]MailboxCredentials
}

// NewMailboxDirectory builds an immutable directory from a loaded
// map (e.g. unmarshaled from the BROKERD_MAILBOXES environment variable).
func NewMailboxDirectory(mailboxes map[string]MailboxCredentials) *MailboxDirectory {
	frozen := make(map[string]MailboxCredentials, len(mailboxes))
	for id, creds := range mailboxes {
		frozen[id] = creds
	}
	return &MailboxDirectory{mailboxes: frozen}
}

// Lookup resolves a mailbox id to its credentials.
func (d *MailboxDirectory) Lookup(id string) (MailboxCredentials, bool) {
	if d == nil || id == "" {
		return nil, false
	}
	creds, ok := d.mailboxes[id]
	return creds, ok
}
