// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/janitor/internal/dbinterface"
	"github.com/autobrr/janitor/internal/media"
	"github.com/autobrr/janitor/pkg/pathcmp"
)

var (
	ErrProtectionNotFound = errors.New("protection not found")
	ErrInvalidProtection  = errors.New("protection needs a valid media type and at least one identifier or path")
)

// Protection is an operator-created record that keeps matching media from
// ever being planned for deletion.
type Protection struct {
	ID        int64      `json:"id"`
	MediaType media.Kind `json:"mediaType"`
	TMDBID    int        `json:"tmdbId,omitempty"`
	TVDBID    int        `json:"tvdbId,omitempty"`
	IMDBID    string     `json:"imdbId,omitempty"`
	Path      string     `json:"path,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Matches reports whether p covers media of the given kind, identifiers and
// path. Movies match on TMDB, series and episodes on TVDB then TMDB. IMDB and
// path containment in either direction match for every kind.
func (p *Protection) Matches(kind media.Kind, ids media.IDs, path string) bool {
	switch kind {
	case media.KindMovie:
		if p.TMDBID != 0 && p.TMDBID == ids.TMDB {
			return true
		}
	case media.KindSeries, media.KindEpisode:
		if p.TVDBID != 0 && p.TVDBID == ids.TVDB {
			return true
		}
		if p.TMDBID != 0 && p.TMDBID == ids.TMDB {
			return true
		}
	}

	if p.IMDBID != "" && strings.EqualFold(p.IMDBID, ids.IMDB) {
		return true
	}

	if p.Path != "" {
		entityPath := pathcmp.NormalizePath(path)
		if entityPath != "" && pathcmp.Related(entityPath, pathcmp.NormalizePath(p.Path)) {
			return true
		}
	}

	return false
}

func (p *Protection) validate() error {
	if !p.MediaType.Valid() {
		return ErrInvalidProtection
	}
	if p.TMDBID == 0 && p.TVDBID == 0 && strings.TrimSpace(p.IMDBID) == "" && strings.TrimSpace(p.Path) == "" {
		return ErrInvalidProtection
	}
	return nil
}

// ProtectionStore handles database operations for manual protections.
type ProtectionStore struct {
	db dbinterface.Querier
}

func NewProtectionStore(db dbinterface.Querier) *ProtectionStore {
	return &ProtectionStore{db: db}
}

const protectionColumns = `id, media_type, tmdb_id, tvdb_id, imdb_id, path, reason, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProtection(row rowScanner) (*Protection, error) {
	var (
		p      Protection
		kind   string
		tmdbID sql.NullInt64
		tvdbID sql.NullInt64
		imdbID sql.NullString
		path   sql.NullString
		reason sql.NullString
	)

	if err := row.Scan(&p.ID, &kind, &tmdbID, &tvdbID, &imdbID, &path, &reason, &p.CreatedAt); err != nil {
		return nil, err
	}

	p.MediaType = media.Kind(kind)
	p.TMDBID = int(tmdbID.Int64)
	p.TVDBID = int(tvdbID.Int64)
	p.IMDBID = imdbID.String
	p.Path = path.String
	p.Reason = reason.String
	return &p, nil
}

// List returns every protection, newest first.
func (s *ProtectionStore) List(ctx context.Context) ([]*Protection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+protectionColumns+` FROM protections ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query protections: %w", err)
	}
	defer rows.Close()

	var out []*Protection
	for rows.Next() {
		p, err := scanProtection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan protection row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate protection rows: %w", err)
	}
	return out, nil
}

// Get returns the protection with id, or nil when it does not exist.
func (s *ProtectionStore) Get(ctx context.Context, id int64) (*Protection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+protectionColumns+` FROM protections WHERE id = ?`, id)
	p, err := scanProtection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get protection %d: %w", id, err)
	}
	return p, nil
}

// Create validates and inserts p, returning the stored record.
func (s *ProtectionStore) Create(ctx context.Context, p *Protection) (*Protection, error) {
	if p == nil {
		return nil, errors.New("protection is nil")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO protections (media_type, tmdb_id, tvdb_id, imdb_id, path, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(p.MediaType), nullInt(p.TMDBID), nullInt(p.TVDBID), nullString(p.IMDBID), nullString(p.Path), nullString(p.Reason))
	if err != nil {
		if isCheckConstraintError(err) {
			return nil, ErrInvalidProtection
		}
		return nil, fmt.Errorf("insert protection: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("protection last insert id: %w", err)
	}

	return s.Get(ctx, id)
}

// Delete removes the protection with id.
func (s *ProtectionStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM protections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete protection %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProtectionNotFound
	}
	return nil
}

// FindMatch returns the first protection covering the given media, or nil.
func (s *ProtectionStore) FindMatch(ctx context.Context, kind media.Kind, ids media.IDs, path string) (*Protection, error) {
	protections, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return FirstMatch(protections, kind, ids, path), nil
}

// FirstMatch returns the first element of protections matching the media.
func FirstMatch(protections []*Protection, kind media.Kind, ids media.IDs, path string) *Protection {
	for _, p := range protections {
		if p != nil && p.Matches(kind, ids, path) {
			return p
		}
	}
	return nil
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}
