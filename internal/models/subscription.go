package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Subscription is a filter over newly discovered tokens plus the channels to notify.
type Subscription struct {
	ID string `json:"id" gorm:"column:id;primaryKey;size:36"`
	// Chains restricts matches to these chains. Empty matches every chain.
	Chains       StringList      `json:"chains" gorm:"column:chains;type:text"`
	HasLiquidity bool            `json:"has_liquidity" gorm:"column:has_liquidity"`
	MinLiquidity decimal.Decimal `json:"min_liquidity" gorm:"column:min_liquidity;type:decimal(38,18);default:0"`
	// NamePattern and SymbolPattern are case-insensitive regular expressions.
	NamePattern   string `json:"name_pattern,omitempty" gorm:"column:name_pattern;size:256"`
	SymbolPattern string `json:"symbol_pattern,omitempty" gorm:"column:symbol_pattern;size:256"`

	WebhookURL       string `json:"webhook_url,omitempty" gorm:"column:webhook_url;size:512"`
	Email            string `json:"email,omitempty" gorm:"column:email;size:256"`
	TelegramUsername string `json:"telegram_username,omitempty" gorm:"column:telegram_username;size:64;index"`
	// TelegramChatID is bound when the user sends /start to the bot.
	TelegramChatID string `json:"-" gorm:"column:telegram_chat_id;size:64"`

	CreatedAt    time.Time  `json:"created_at" gorm:"column:created_at"`
	LastNotified *time.Time `json:"last_notified,omitempty" gorm:"column:last_notified"`
}

func (s *Subscription) HasChannel() bool {
	return s.WebhookURL != "" || s.Email != "" || s.TelegramUsername != ""
}

// StringList is stored as a comma separated column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	return strings.Join(l, ","), nil
}

func (l *StringList) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	*l = nil
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			*l = append(*l, item)
		}
	}
	return nil
}
