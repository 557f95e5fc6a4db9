// Package store keeps the account registry in PostgreSQL for deployments
// that run more than one lister process against the same accounts.
package store

import (
	"github.com/fizic37/delcampe-ebay/internal/account"
)

var _ account.Backend = (*PostgresStore)(nil)

const querySelectAccounts = `
	SELECT account_key, user_id, username, environment, access_token,
	       refresh_token, token_expiry, connected_at, last_used_at
	FROM ebay_accounts
	ORDER BY account_key`

const querySelectState = `
	SELECT active_account_key, last_updated
	FROM registry_state
	WHERE id = 1`

const queryUpsertAccount = `
	INSERT INTO ebay_accounts (
		account_key, user_id, username, environment, access_token,
		refresh_token, token_expiry, connected_at, last_used_at
	) VALUES (
		@account_key, @user_id, @username, @environment, @access_token,
		@refresh_token, @token_expiry, @connected_at, @last_used_at
	)
	ON CONFLICT (account_key) DO UPDATE SET
		user_id       = EXCLUDED.user_id,
		username      = EXCLUDED.username,
		environment   = EXCLUDED.environment,
		access_token  = EXCLUDED.access_token,
		refresh_token = EXCLUDED.refresh_token,
		token_expiry  = EXCLUDED.token_expiry,
		connected_at  = EXCLUDED.connected_at,
		last_used_at  = EXCLUDED.last_used_at`

const queryDeleteMissingAccounts = `
	DELETE FROM ebay_accounts
	WHERE NOT (account_key = ANY($1::text[]))`

const queryUpsertState = `
	INSERT INTO registry_state (id, active_account_key, last_updated)
	VALUES (1, $1, $2)
	ON CONFLICT (id) DO UPDATE SET
		active_account_key = EXCLUDED.active_account_key,
		last_updated       = EXCLUDED.last_updated`
