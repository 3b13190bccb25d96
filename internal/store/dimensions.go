// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"fmt"

	"github.com/openestate/resosync/internal/reso"
)

// UpsertMember writes an agent/member dimension row. Members are referenced
// from listings by key only; no foreign key is enforced.
func (s *Store) UpsertMember(ctx context.Context, m *reso.Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mls.members (
			member_key, member_id, first_name, last_name, full_name,
			email, phone, office_key, state_license, modified_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (member_key) DO UPDATE SET
			member_id = EXCLUDED.member_id,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			office_key = EXCLUDED.office_key,
			state_license = EXCLUDED.state_license,
			modified_at = EXCLUDED.modified_at,
			updated_at = now()`,
		m.MemberKey, nullable(m.MemberMlsID), nullable(m.MemberFirstName),
		nullable(m.MemberLastName), nullable(m.MemberFullName),
		nullable(m.MemberEmail), nullable(m.MemberPhone),
		nullable(m.OfficeKey), nullable(m.MemberStateLicense),
		m.ModificationTimestamp)
	if err != nil {
		return fmt.Errorf("upsert member %s: %w", m.MemberKey, err)
	}
	return nil
}

// UpsertOffice writes a brokerage office dimension row.
func (s *Store) UpsertOffice(ctx context.Context, o *reso.Office) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mls.offices (
			office_key, office_id, name, phone, email, address, city,
			state, postal_code, modified_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (office_key) DO UPDATE SET
			office_id = EXCLUDED.office_id,
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			postal_code = EXCLUDED.postal_code,
			modified_at = EXCLUDED.modified_at,
			updated_at = now()`,
		o.OfficeKey, nullable(o.OfficeMlsID), nullable(o.OfficeName),
		nullable(o.OfficePhone), nullable(o.OfficeEmail),
		nullable(o.OfficeAddress1), nullable(o.OfficeCity),
		nullable(o.OfficeStateOrProvince), nullable(o.OfficePostalCode),
		o.ModificationTimestamp)
	if err != nil {
		return fmt.Errorf("upsert office %s: %w", o.OfficeKey, err)
	}
	return nil
}

// UpsertLookup writes an enum lookup row used to resolve display names.
func (s *Store) UpsertLookup(ctx context.Context, l *reso.Lookup) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mls.lookups (lookup_key, name, value, standard_value, modified_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lookup_key) DO UPDATE SET
			name = EXCLUDED.name,
			value = EXCLUDED.value,
			standard_value = EXCLUDED.standard_value,
			modified_at = EXCLUDED.modified_at`,
		l.LookupKey, nullable(l.LookupName), nullable(l.LookupValue),
		nullable(l.StandardLookupValue), l.ModificationTimestamp)
	if err != nil {
		return fmt.Errorf("upsert lookup %s: %w", l.LookupKey, err)
	}
	return nil
}
