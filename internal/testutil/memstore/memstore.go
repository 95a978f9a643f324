// Package memstore is an in-memory implementation of the service store
// interfaces for tests. It mirrors the postgres store's conditional updates
// and unique constraints, and returns the same sentinel errors.
package memstore

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aklabu/e-commerce/internal/models"
	"github.com/Aklabu/e-commerce/internal/store"
)

type data struct {
	accounts map[uuid.UUID]models.Account
	billing  map[uuid.UUID]models.BillingAddress
	delivery map[uuid.UUID]models.DeliveryAddress
	trade    map[uuid.UUID]models.TradeInfo
	docs     map[uuid.UUID]models.TradeDocument
	otps     map[uuid.UUID]models.OTPCode
	tokens   map[uuid.UUID]models.RefreshToken
	tickets  map[uuid.UUID]models.PasswordResetTicket
	seq      map[uuid.UUID]int64
	next     int64
}

func (d *data) clone() *data {
	return &data{
		accounts: maps.Clone(d.accounts),
		billing:  maps.Clone(d.billing),
		delivery: maps.Clone(d.delivery),
		trade:    maps.Clone(d.trade),
		docs:     maps.Clone(d.docs),
		otps:     maps.Clone(d.otps),
		tokens:   maps.Clone(d.tokens),
		tickets:  maps.Clone(d.tickets),
		seq:      maps.Clone(d.seq),
		next:     d.next,
	}
}

// Store serialises every operation. Operations inside WithinTx share the
// transaction's hold on the lock and are rolled back together on error.
type Store struct {
	mu sync.Mutex
	d  *data
}

func New() *Store {
	return &Store{d: &data{
		accounts: map[uuid.UUID]models.Account{},
		billing:  map[uuid.UUID]models.BillingAddress{},
		delivery: map[uuid.UUID]models.DeliveryAddress{},
		trade:    map[uuid.UUID]models.TradeInfo{},
		docs:     map[uuid.UUID]models.TradeDocument{},
		otps:     map[uuid.UUID]models.OTPCode{},
		tokens:   map[uuid.UUID]models.RefreshToken{},
		tickets:  map[uuid.UUID]models.PasswordResetTicket{},
		seq:      map[uuid.UUID]int64{},
	}}
}

type txKey struct{}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

// run executes op under the lock unless ctx is already inside a transaction.
func (s *Store) run(ctx context.Context, op func(d *data) error) error {
	if ctx.Value(txKey{}) == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return op(s.d)
}

func (d *data) stamp(base *models.BaseModel) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	now := time.Now().UTC()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
	d.next++
	d.seq[base.ID] = d.next
}

func touch(base *models.BaseModel) {
	base.UpdatedAt = time.Now().UTC()
}

// Accounts

func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	return s.run(ctx, func(d *data) error {
		for _, a := range d.accounts {
			if a.Email == account.Email {
				return store.ErrDuplicate
			}
		}
		d.stamp(&account.BaseModel)
		stored := *account
		stored.BillingAddresses = nil
		stored.DeliveryAddresses = nil
		stored.TradeInfo = nil
		d.accounts[account.ID] = stored
		return nil
	})
}

func (s *Store) AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var out *models.Account
	err := s.run(ctx, func(d *data) error {
		a, ok := d.accounts[id]
		if !ok {
			return store.ErrNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var out *models.Account
	err := s.run(ctx, func(d *data) error {
		for _, a := range d.accounts {
			if a.Email == email {
				a := a
				out = &a
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (s *Store) AccountProfile(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var out *models.Account
	err := s.run(ctx, func(d *data) error {
		a, ok := d.accounts[id]
		if !ok {
			return store.ErrNotFound
		}
		a.BillingAddresses = d.billingOf(id)
		a.DeliveryAddresses = d.deliveryOf(id)
		if info, ok := d.tradeOf(id); ok {
			a.TradeInfo = &info
		}
		out = &a
		return nil
	})
	return out, err
}

func (s *Store) LockAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return s.AccountByID(ctx, id)
}

func (s *Store) AdvanceStage(ctx context.Context, id uuid.UUID, from, to models.RegistrationStage) (bool, error) {
	var ok bool
	err := s.run(ctx, func(d *data) error {
		a, found := d.accounts[id]
		if !found || a.Stage != from {
			return nil
		}
		a.Stage = to
		touch(&a.BaseModel)
		d.accounts[id] = a
		ok = true
		return nil
	})
	return ok, err
}

func (s *Store) MarkEmailVerified(ctx context.Context, id uuid.UUID, from models.RegistrationStage) (bool, error) {
	var ok bool
	err := s.run(ctx, func(d *data) error {
		a, found := d.accounts[id]
		if !found || a.Stage != from || a.EmailVerified {
			return nil
		}
		a.EmailVerified = true
		a.Stage = models.StageEmailVerified
		touch(&a.BaseModel)
		d.accounts[id] = a
		ok = true
		return nil
	})
	return ok, err
}

func (s *Store) updateAccount(ctx context.Context, id uuid.UUID, fn func(a *models.Account)) error {
	return s.run(ctx, func(d *data) error {
		a, found := d.accounts[id]
		if !found {
			return store.ErrNotFound
		}
		fn(&a)
		touch(&a.BaseModel)
		d.accounts[id] = a
		return nil
	})
}

func (s *Store) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return s.updateAccount(ctx, id, func(a *models.Account) { a.PasswordHash = passwordHash })
}

func (s *Store) UpdateProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) error {
	return s.updateAccount(ctx, id, func(a *models.Account) {
		if update.FirstName != nil {
			a.FirstName = *update.FirstName
		}
		if update.LastName != nil {
			a.LastName = *update.LastName
		}
		if update.PhoneNumber != nil {
			a.PhoneNumber = *update.PhoneNumber
		}
	})
}

func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.updateAccount(ctx, id, func(a *models.Account) { a.IsActive = active })
}

func (s *Store) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, int64, error) {
	var (
		out   []models.Account
		total int64
	)
	err := s.run(ctx, func(d *data) error {
		search := strings.ToLower(strings.TrimSpace(filter.Search))
		var matched []models.Account
		for _, a := range d.accounts {
			if search != "" && !strings.Contains(a.Email, search) &&
				!strings.Contains(strings.ToLower(a.FirstName), search) &&
				!strings.Contains(strings.ToLower(a.LastName), search) {
				continue
			}
			if filter.CustomerType != "" && a.CustomerType != filter.CustomerType {
				continue
			}
			if filter.Active != nil && a.IsActive != *filter.Active {
				continue
			}
			if info, ok := d.tradeOf(a.ID); ok {
				info.Documents = nil
				a.TradeInfo = &info
			}
			matched = append(matched, a)
		}
		sort.Slice(matched, func(i, j int) bool { return d.seq[matched[i].ID] > d.seq[matched[j].ID] })
		total = int64(len(matched))
		out = page(matched, filter.Limit, filter.Offset)
		return nil
	})
	return out, total, err
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Addresses

func (d *data) billingOf(accountID uuid.UUID) []models.BillingAddress {
	var out []models.BillingAddress
	for _, b := range d.billing {
		if b.AccountID == accountID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return d.seq[out[i].ID] < d.seq[out[j].ID] })
	return out
}

func (d *data) deliveryOf(accountID uuid.UUID) []models.DeliveryAddress {
	var out []models.DeliveryAddress
	for _, a := range d.delivery {
		if a.AccountID == accountID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return d.seq[out[i].ID] < d.seq[out[j].ID] })
	return out
}

func (s *Store) CreateBillingAddress(ctx context.Context, address *models.BillingAddress) error {
	return s.run(ctx, func(d *data) error {
		if _, ok := d.accounts[address.AccountID]; !ok {
			return store.ErrNotFound
		}
		d.stamp(&address.BaseModel)
		d.billing[address.ID] = *address
		return nil
	})
}

func (s *Store) CreateDeliveryAddress(ctx context.Context, address *models.DeliveryAddress) error {
	return s.run(ctx, func(d *data) error {
		if _, ok := d.accounts[address.AccountID]; !ok {
			return store.ErrNotFound
		}
		d.stamp(&address.BaseModel)
		d.delivery[address.ID] = *address
		return nil
	})
}

func (s *Store) UpdateBillingAddress(ctx context.Context, address *models.BillingAddress) error {
	return s.run(ctx, func(d *data) error {
		current, ok := d.billing[address.ID]
		if !ok || current.AccountID != address.AccountID {
			return store.ErrNotFound
		}
		address.CreatedAt = current.CreatedAt
		touch(&address.BaseModel)
		d.billing[address.ID] = *address
		return nil
	})
}

func (s *Store) UpdateDeliveryAddress(ctx context.Context, address *models.DeliveryAddress) error {
	return s.run(ctx, func(d *data) error {
		current, ok := d.delivery[address.ID]
		if !ok || current.AccountID != address.AccountID {
			return store.ErrNotFound
		}
		address.CreatedAt = current.CreatedAt
		touch(&address.BaseModel)
		d.delivery[address.ID] = *address
		return nil
	})
}

func (s *Store) CountAddresses(ctx context.Context, kind models.AddressKind, accountID uuid.UUID) (int64, error) {
	var n int64
	err := s.run(ctx, func(d *data) error {
		switch kind {
		case models.AddressBilling:
			n = int64(len(d.billingOf(accountID)))
		case models.AddressDelivery:
			n = int64(len(d.deliveryOf(accountID)))
		}
		return nil
	})
	return n, err
}

func (s *Store) DeleteAddress(ctx context.Context, kind models.AddressKind, accountID, id uuid.UUID) error {
	return s.run(ctx, func(d *data) error {
		switch kind {
		case models.AddressBilling:
			if b, ok := d.billing[id]; ok && b.AccountID == accountID {
				delete(d.billing, id)
				return nil
			}
		case models.AddressDelivery:
			if a, ok := d.delivery[id]; ok && a.AccountID == accountID {
				delete(d.delivery, id)
				return nil
			}
		}
		return store.ErrNotFound
	})
}

// Trade applications

func (d *data) tradeOf(accountID uuid.UUID) (models.TradeInfo, bool) {
	for _, info := range d.trade {
		if info.AccountID == accountID {
			info.Documents = d.docsOf(info.ID)
			return info, true
		}
	}
	return models.TradeInfo{}, false
}

func (d *data) docsOf(tradeInfoID uuid.UUID) []models.TradeDocument {
	var out []models.TradeDocument
	for _, doc := range d.docs {
		if doc.TradeInfoID == tradeInfoID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return d.seq[out[i].ID] < d.seq[out[j].ID] })
	return out
}

func (d *data) insertDocs(tradeInfoID uuid.UUID, docs []models.TradeDocument) {
	for i := range docs {
		docs[i].TradeInfoID = tradeInfoID
		d.stamp(&docs[i].BaseModel)
		d.docs[docs[i].ID] = docs[i]
	}
}

func (s *Store) CreateTradeInfo(ctx context.Context, info *models.TradeInfo) error {
	return s.run(ctx, func(d *data) error {
		if _, exists := d.tradeOf(info.AccountID); exists {
			return store.ErrDuplicate
		}
		d.stamp(&info.BaseModel)
		d.insertDocs(info.ID, info.Documents)
		stored := *info
		stored.Documents = nil
		d.trade[info.ID] = stored
		return nil
	})
}

func (s *Store) TradeInfoByAccount(ctx context.Context, accountID uuid.UUID) (*models.TradeInfo, error) {
	var out *models.TradeInfo
	err := s.run(ctx, func(d *data) error {
		info, ok := d.tradeOf(accountID)
		if !ok {
			return store.ErrNotFound
		}
		out = &info
		return nil
	})
	return out, err
}

func (s *Store) ResubmitTradeInfo(ctx context.Context, info *models.TradeInfo) (bool, error) {
	var changed bool
	err := s.run(ctx, func(d *data) error {
		current, ok := d.tradeOf(info.AccountID)
		if !ok {
			return store.ErrNotFound
		}
		if current.ApprovalStatus != models.ApprovalRejected {
			return nil
		}
		for _, doc := range current.Documents {
			delete(d.docs, doc.ID)
		}
		current.BusinessType = info.BusinessType
		current.MonthlyStatement = info.MonthlyStatement
		current.ProcurementNo = info.ProcurementNo
		current.ApprovalStatus = models.ApprovalPending
		current.ReviewedBy = nil
		current.ReviewedAt = nil
		current.RejectionReason = ""
		current.Documents = nil
		touch(&current.BaseModel)
		d.trade[current.ID] = current

		d.insertDocs(current.ID, info.Documents)
		docs := info.Documents
		*info = current
		info.Documents = docs
		changed = true
		return nil
	})
	return changed, err
}

func (s *Store) SetTradeStatus(ctx context.Context, accountID uuid.UUID, from, to models.ApprovalStatus, review models.TradeReview) (bool, error) {
	var ok bool
	err := s.run(ctx, func(d *data) error {
		current, found := d.tradeOf(accountID)
		if !found || current.ApprovalStatus != from {
			return nil
		}
		reviewer := review.ReviewerID
		at := review.At
		current.ApprovalStatus = to
		current.ReviewedBy = &reviewer
		current.ReviewedAt = &at
		current.RejectionReason = review.Reason
		current.Documents = nil
		touch(&current.BaseModel)
		d.trade[current.ID] = current
		ok = true
		return nil
	})
	return ok, err
}

func (s *Store) ListTradeInfos(ctx context.Context, status models.ApprovalStatus, limit, offset int) ([]models.TradeInfo, int64, error) {
	var (
		out   []models.TradeInfo
		total int64
	)
	err := s.run(ctx, func(d *data) error {
		var matched []models.TradeInfo
		for _, info := range d.trade {
			if status != "" && info.ApprovalStatus != status {
				continue
			}
			info.Documents = d.docsOf(info.ID)
			matched = append(matched, info)
		}
		sort.Slice(matched, func(i, j int) bool { return d.seq[matched[i].ID] < d.seq[matched[j].ID] })
		total = int64(len(matched))
		out = page(matched, limit, offset)
		return nil
	})
	return out, total, err
}

func (s *Store) TradeDocument(ctx context.Context, id uuid.UUID) (*models.TradeDocument, error) {
	var out *models.TradeDocument
	err := s.run(ctx, func(d *data) error {
		doc, ok := d.docs[id]
		if !ok {
			return store.ErrNotFound
		}
		out = &doc
		return nil
	})
	return out, err
}

// One-time codes

func (s *Store) SupersedeOTPs(ctx context.Context, accountID uuid.UUID, purpose models.OTPPurpose, now time.Time) error {
	return s.run(ctx, func(d *data) error {
		for id, code := range d.otps {
			if code.AccountID == accountID && code.Purpose == purpose && code.ConsumedAt == nil {
				at := now
				code.ConsumedAt = &at
				code.Superseded = true
				d.otps[id] = code
			}
		}
		return nil
	})
}

func (s *Store) CreateOTP(ctx context.Context, code *models.OTPCode) error {
	return s.run(ctx, func(d *data) error {
		for _, c := range d.otps {
			if c.AccountID == code.AccountID && c.Purpose == code.Purpose && c.ConsumedAt == nil {
				return store.ErrDuplicate
			}
		}
		d.stamp(&code.BaseModel)
		d.otps[code.ID] = *code
		return nil
	})
}

func (s *Store) LatestOTP(ctx context.Context, accountID uuid.UUID, purpose models.OTPPurpose) (*models.OTPCode, error) {
	var out *models.OTPCode
	err := s.run(ctx, func(d *data) error {
		for _, c := range d.otps {
			if c.AccountID != accountID || c.Purpose != purpose {
				continue
			}
			if out == nil || c.IssuedAt.After(out.IssuedAt) ||
				(c.IssuedAt.Equal(out.IssuedAt) && d.seq[c.ID] > d.seq[out.ID]) {
				c := c
				out = &c
			}
		}
		if out == nil {
			return store.ErrNotFound
		}
		return nil
	})
	return out, err
}

func (s *Store) ConsumeOTP(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	var ok bool
	err := s.run(ctx, func(d *data) error {
		code, found := d.otps[id]
		if !found || code.ConsumedAt != nil {
			return nil
		}
		at := now
		code.ConsumedAt = &at
		d.otps[id] = code
		ok = true
		return nil
	})
	return ok, err
}

func (s *Store) RecordOTPFailure(ctx context.Context, id uuid.UUID, maxAttempts int, now time.Time) (bool, error) {
	var burned bool
	err := s.run(ctx, func(d *data) error {
		code, found := d.otps[id]
		if !found || code.ConsumedAt != nil {
			return nil
		}
		code.Attempts++
		if code.Attempts >= maxAttempts {
			at := now
			code.ConsumedAt = &at
			burned = true
		}
		d.otps[id] = code
		return nil
	})
	return burned, err
}

// Refresh tokens

func (s *Store) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return s.run(ctx, func(d *data) error {
		for _, t := range d.tokens {
			if t.TokenHash == token.TokenHash {
				return store.ErrDuplicate
			}
		}
		d.stamp(&token.BaseModel)
		d.tokens[token.ID] = *token
		return nil
	})
}

func (s *Store) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var out *models.RefreshToken
	err := s.run(ctx, func(d *data) error {
		for _, t := range d.tokens {
			if t.TokenHash == hash {
				t := t
				out = &t
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (s *Store) revokeWhere(ctx context.Context, match func(models.RefreshToken) bool, reason string, now time.Time) (int64, error) {
	var n int64
	err := s.run(ctx, func(d *data) error {
		for id, t := range d.tokens {
			if t.RevokedAt != nil || !match(t) {
				continue
			}
			at := now
			t.RevokedAt = &at
			t.RevokedReason = reason
			d.tokens[id] = t
			n++
		}
		return nil
	})
	return n, err
}

func (s *Store) RevokeRefreshToken(ctx context.Context, id uuid.UUID, reason string, now time.Time) (bool, error) {
	n, err := s.revokeWhere(ctx, func(t models.RefreshToken) bool { return t.ID == id }, reason, now)
	return n == 1, err
}

func (s *Store) RevokeTokenFamily(ctx context.Context, familyID uuid.UUID, reason string, now time.Time) (int64, error) {
	return s.revokeWhere(ctx, func(t models.RefreshToken) bool { return t.FamilyID == familyID }, reason, now)
}

func (s *Store) RevokeAccountTokens(ctx context.Context, accountID uuid.UUID, reason string, now time.Time) (int64, error) {
	return s.revokeWhere(ctx, func(t models.RefreshToken) bool { return t.AccountID == accountID }, reason, now)
}

// Tokens returns every refresh token of the account, oldest first.
func (s *Store) Tokens(accountID uuid.UUID) []models.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RefreshToken
	for _, t := range s.d.tokens {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.d.seq[out[i].ID] < s.d.seq[out[j].ID] })
	return out
}

// OTPs returns every code of the pair, oldest first.
func (s *Store) OTPs(accountID uuid.UUID, purpose models.OTPPurpose) []models.OTPCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.OTPCode
	for _, c := range s.d.otps {
		if c.AccountID == accountID && c.Purpose == purpose {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.d.seq[out[i].ID] < s.d.seq[out[j].ID] })
	return out
}

// Reset tickets

func (s *Store) CreateResetTicket(ctx context.Context, ticket *models.PasswordResetTicket) error {
	return s.run(ctx, func(d *data) error {
		for _, t := range d.tickets {
			if t.TokenHash == ticket.TokenHash {
				return store.ErrDuplicate
			}
		}
		d.stamp(&ticket.BaseModel)
		d.tickets[ticket.ID] = *ticket
		return nil
	})
}

func (s *Store) ResetTicketByHash(ctx context.Context, hash string) (*models.PasswordResetTicket, error) {
	var out *models.PasswordResetTicket
	err := s.run(ctx, func(d *data) error {
		for _, t := range d.tickets {
			if t.TokenHash == hash {
				t := t
				out = &t
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (s *Store) ConsumeResetTicket(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	var ok bool
	err := s.run(ctx, func(d *data) error {
		t, found := d.tickets[id]
		if !found || t.UsedAt != nil || !now.Before(t.ExpiresAt) {
			return nil
		}
		at := now
		t.UsedAt = &at
		d.tickets[id] = t
		ok = true
		return nil
	})
	return ok, err
}
