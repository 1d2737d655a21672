// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/habitstreak/internal/model"
	"github.com/hitoshi/habitstreak/internal/repository"
)

// MaxPerPage はディレクトリ一覧の1ページあたりの上限件数。
const MaxPerPage = 1000

// Directory はユーザー管理に必要なアカウントディレクトリの操作。
type Directory interface {
	FindByID(ctx context.Context, id string) (*model.Identity, error)
	List(ctx context.Context, page, perPage int) ([]*model.Identity, int, error)
	UpdateRole(ctx context.Context, id, role string) error
	Delete(ctx context.Context, id string) error
}

// SessionDeleter はユーザーのセッションを一括削除する。
type SessionDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// Page はディレクトリ一覧の1ページ分。
type Page struct {
	Users   []*model.Identity
	Total   int
	Page    int
	PerPage int
}

// Service はユーザー管理のサービス層。
// 退会処理と管理者向けのユーザー操作を提供する。
type Service struct {
	dir             Directory
	sessionDeleter  SessionDeleter
	defaultPageSize int
}

// NewService はServiceの新しいインスタンスを生成する。
// defaultPageSizeはper_page未指定時の件数で、1..MaxPerPageに丸められる。
func NewService(dir Directory, sessionDeleter SessionDeleter, defaultPageSize int) *Service {
	return &Service{
		dir:             dir,
		sessionDeleter:  sessionDeleter,
		defaultPageSize: clampPerPage(defaultPageSize),
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → identity（+ CASCADE: goals, checkins）
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	// ユーザー存在確認
	identity, err := s.dir.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if identity == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. セッションを削除
	if s.sessionDeleter != nil {
		if err := s.sessionDeleter.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	// 2. identityを削除（goals, checkinsはCASCADE削除）
	if err := s.dir.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}

// ListUsers はディレクトリをページ単位で取得する。Super Adminのみ実行できる。
// pageは1始まり。perPageが0以下の場合は既定値を使い、上限はMaxPerPage。
func (s *Service) ListUsers(ctx context.Context, principal *model.Principal, page, perPage int) (*Page, error) {
	if principal == nil {
		return nil, model.NewAuthRequiredError()
	}
	if !principal.IsSuperAdmin() {
		return nil, model.NewForbiddenError()
	}

	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = s.defaultPageSize
	}
	perPage = clampPerPage(perPage)

	users, total, err := s.dir.List(ctx, page, perPage)
	if err != nil {
		slog.Error("failed to list directory",
			slog.String("user_id", principal.UserID),
			slog.Int("page", page),
			slog.Int("per_page", perPage),
			slog.String("error", err.Error()),
		)
		return nil, model.NewDirectoryListFailedError()
	}
	if users == nil {
		users = []*model.Identity{}
	}

	return &Page{Users: users, Total: total, Page: page, PerPage: perPage}, nil
}

// UpdateRole は指定ユーザーのロールを変更する。Super Adminのみ実行できる。
func (s *Service) UpdateRole(ctx context.Context, principal *model.Principal, userID, role string) (*model.Identity, error) {
	if principal == nil {
		return nil, model.NewAuthRequiredError()
	}
	if !principal.IsSuperAdmin() {
		return nil, model.NewForbiddenError()
	}
	if !model.IsValidRole(role) {
		return nil, model.NewInvalidRoleError(role)
	}

	if err := s.dir.UpdateRole(ctx, userID, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("ロールの更新に失敗しました: %w", err)
	}

	identity, err := s.dir.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if identity == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("ロールを変更しました",
		slog.String("user_id", userID),
		slog.String("role", role),
		slog.String("changed_by", principal.UserID),
	)

	return identity, nil
}

func clampPerPage(perPage int) int {
	if perPage < 1 {
		return MaxPerPage
	}
	if perPage > MaxPerPage {
		return MaxPerPage
	}
	return perPage
}
