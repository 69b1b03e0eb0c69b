// Package directory is the LDAP adapter. Customer presence is resolved by
// substring match on the description attribute (the tagging convention the
// directory actually uses), so ids that are substrings of each other will
// collide. Identities are disabled and quarantined, never hard-deleted;
// groups are emptied before deletion.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-ldap/ldap/v3"

	"testex/config"
	"testex/termination"
)

const accountDisabledBit = 0x2

// User is one directory identity tagged with the customer id.
type User struct {
	DN                 string
	SAMAccountName     string
	UserAccountControl int64
}

// Group is one directory group tagged with the customer id.
type Group struct {
	DN      string
	Name    string
	Members []string
}

// Presence is the directory projection of a customer.
type Presence struct {
	Users  []User
	Groups []Group
}

// conn is the slice of *ldap.Conn the adapter uses; fakes implement it in
// tests.
type conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Modify(req *ldap.ModifyRequest) error
	ModifyDN(req *ldap.ModifyDNRequest) error
	Del(req *ldap.DelRequest) error
	Close() error
}

type dialer func(url string) (conn, error)

func ldapDial(url string) (conn, error) {
	c, err := ldap.DialURL(url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type Adapter struct {
	cfg  config.Directory
	log  *slog.Logger
	dial dialer
	conn conn
}

func NewAdapter(cfg config.Directory, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{cfg: cfg, log: log, dial: ldapDial}
}

func (a *Adapter) Name() string { return "directory" }

// Connect dials and binds; the bound connection is reused for the run.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.conn != nil {
		return nil
	}
	c, err := a.dial(a.cfg.URL)
	if err != nil {
		return fmt.Errorf("directory: dial %s: %w", a.cfg.URL, err)
	}
	if err := c.Bind(a.cfg.BindDN, a.cfg.BindPassword); err != nil {
		c.Close()
		return fmt.Errorf("directory: bind as %s: %w", a.cfg.BindDN, err)
	}
	a.conn = c
	return nil
}

func (a *Adapter) Close() {
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
}

// descriptionFilter builds the substring filter for one object class. The
// id is filter-escaped; the match itself stays a substring on purpose.
func descriptionFilter(class, customerID string) string {
	return fmt.Sprintf("(&(objectClass=%s)(description=*%s*))", class, ldap.EscapeFilter(customerID))
}

// Find resolves every identity and group tagged with the customer id.
func (a *Adapter) Find(ctx context.Context, customerID string) (Presence, error) {
	var p Presence

	userReq := ldap.NewSearchRequest(
		a.cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		descriptionFilter("user", customerID),
		[]string{"dn", "sAMAccountName", "userAccountControl"}, nil)
	userRes, err := a.conn.Search(userReq)
	if err != nil {
		return p, fmt.Errorf("directory: search users: %w", err)
	}
	for _, e := range userRes.Entries {
		uac, _ := strconv.ParseInt(e.GetAttributeValue("userAccountControl"), 10, 64)
		p.Users = append(p.Users, User{
			DN:                 e.DN,
			SAMAccountName:     e.GetAttributeValue("sAMAccountName"),
			UserAccountControl: uac,
		})
	}

	groupReq := ldap.NewSearchRequest(
		a.cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		descriptionFilter("group", customerID),
		[]string{"dn", "cn", "member"}, nil)
	groupRes, err := a.conn.Search(groupReq)
	if err != nil {
		return p, fmt.Errorf("directory: search groups: %w", err)
	}
	for _, e := range groupRes.Entries {
		p.Groups = append(p.Groups, Group{
			DN:      e.DN,
			Name:    e.GetAttributeValue("cn"),
			Members: e.GetAttributeValues("member"),
		})
	}

	return p, nil
}

func (a *Adapter) Lookup(ctx context.Context, customerID string) (bool, string, error) {
	p, err := a.Find(ctx, customerID)
	if err != nil {
		return false, "", err
	}
	summary := fmt.Sprintf("%d users, %d groups found", len(p.Users), len(p.Groups))
	return len(p.Users) > 0 || len(p.Groups) > 0, summary, nil
}

// Backup is a no-op: identities are moved to the quarantine OU rather than
// destroyed, so the directory keeps its own recovery path.
func (a *Adapter) Backup(ctx context.Context, customerID string) error {
	return nil
}

// Mutate disables and quarantines every tagged identity, then empties and
// deletes every tagged group, in that order. A group is never deleted while
// it still holds members.
func (a *Adapter) Mutate(ctx context.Context, customerID string, mode termination.ExecutionMode) (string, error) {
	p, err := a.Find(ctx, customerID)
	if err != nil {
		return "", err
	}

	if mode == termination.Simulate {
		return fmt.Sprintf("SIMULATED: would disable and quarantine %d users, delete %d groups",
			len(p.Users), len(p.Groups)), nil
	}

	for _, u := range p.Users {
		if err := a.disableUser(u); err != nil {
			return "", err
		}
		if err := a.quarantineUser(u); err != nil {
			return "", err
		}
		a.log.Info("identity quarantined", "dn", u.DN)
	}

	for _, g := range p.Groups {
		if err := a.deleteGroup(g); err != nil {
			return "", err
		}
		a.log.Info("group deleted", "dn", g.DN, "members_removed", len(g.Members))
	}

	return fmt.Sprintf("%d users disabled and quarantined, %d groups deleted", len(p.Users), len(p.Groups)), nil
}

func (a *Adapter) disableUser(u User) error {
	req := ldap.NewModifyRequest(u.DN, nil)
	req.Replace("userAccountControl", []string{strconv.FormatInt(u.UserAccountControl|accountDisabledBit, 10)})
	if err := a.conn.Modify(req); err != nil {
		return fmt.Errorf("directory: disable %s: %w", u.DN, err)
	}
	return nil
}

func (a *Adapter) quarantineUser(u User) error {
	rdn := u.DN
	if idx := indexComma(rdn); idx > 0 {
		rdn = rdn[:idx]
	}
	req := ldap.NewModifyDNRequest(u.DN, rdn, true, a.cfg.QuarantineOU)
	if err := a.conn.ModifyDN(req); err != nil {
		return fmt.Errorf("directory: quarantine %s: %w", u.DN, err)
	}
	return nil
}

func (a *Adapter) deleteGroup(g Group) error {
	if len(g.Members) > 0 {
		req := ldap.NewModifyRequest(g.DN, nil)
		req.Delete("member", g.Members)
		if err := a.conn.Modify(req); err != nil {
			return fmt.Errorf("directory: empty group %s: %w", g.DN, err)
		}
	}
	if err := a.conn.Del(ldap.NewDelRequest(g.DN, nil)); err != nil {
		return fmt.Errorf("directory: delete group %s: %w", g.DN, err)
	}
	return nil
}

// indexComma finds the end of the leading RDN, skipping escaped commas.
func indexComma(dn string) int {
	for i := 0; i < len(dn); i++ {
		switch dn[i] {
		case '\\':
			i++
		case ',':
			return i
		}
	}
	return -1
}

// HealthCheck binds and reads the base entry.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if err := a.Connect(ctx); err != nil {
		return err
	}
	req := ldap.NewSearchRequest(
		a.cfg.BaseDN, ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 0, false,
		"(objectClass=*)", []string{"dn"}, nil)
	if _, err := a.conn.Search(req); err != nil {
		return fmt.Errorf("directory: health check: %w", err)
	}
	return nil
}

var _ termination.Adapter = (*Adapter)(nil)
