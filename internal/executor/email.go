package executor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/torbel/Interflow/internal/condition"
)

const (
	// KindEmail — тип узла отправки почты.
	KindEmail = "email"

	// Ключи конфигурации.
	configTo      = "to"
	configCC      = "cc"
	configFrom    = "from"
	configSubject = "subject"
	configEmulate = "emulate"
)

// placeholderRe — плейсхолдер вида {{path.to.field}}.
var placeholderRe = regexp.MustCompile(`\{\{\s*([\w.\-]+)\s*\}\}`)

// EmailExecutor — узел отправки почтового уведомления.
//
// Тема, тело и адреса поддерживают плейсхолдеры {{path.to.field}},
// подставляемые из входных данных узла. Отсутствующий путь
// подставляется пустой строкой.
//
// Конфигурация:
//
//	{
//	    "to": ["{{order.customer.email}}", "sales@acme.io"],
//	    "subject": "Order {{order.id}} confirmed",
//	    "body": "Total: {{order.total}}",
//	    "emulate": false
//	}
//
// Без сконфигурированного мейлера или с emulate узел не шлёт письмо,
// а возвращает синтетическое подтверждение.
type EmailExecutor struct {
	mailer Mailer
	logger *slog.Logger
}

// NewEmailExecutor создаёт новый EmailExecutor.
func NewEmailExecutor(mailer Mailer, logger *slog.Logger) *EmailExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailExecutor{mailer: mailer, logger: logger}
}

// Kind возвращает тип узла.
func (e *EmailExecutor) Kind() string {
	return KindEmail
}

// Execute отправляет письмо, отрендеренное из входных данных.
func (e *EmailExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	to := renderList(GetConfigStringSlice(req.Config, configTo), req.Input)
	if len(to) == 0 {
		return nil, fmt.Errorf("%w: email requires recipients", ErrInvalidConfig)
	}

	msg := Message{
		From:    renderTemplate(GetConfigString(req.Config, configFrom), req.Input),
		To:      to,
		CC:      renderList(GetConfigStringSlice(req.Config, configCC), req.Input),
		Subject: renderTemplate(GetConfigString(req.Config, configSubject), req.Input),
		Body:    renderTemplate(GetConfigString(req.Config, configBody), req.Input),
	}

	if e.mailer == nil || GetConfigBool(req.Config, configEmulate, false) {
		e.logger.Info("email emulated", "to", msg.To, "subject", msg.Subject)
		return &Result{
			Output: map[string]any{
				"sent":     false,
				"emulated": true,
				"to":       msg.To,
				"subject":  msg.Subject,
			},
			Meta: map[string]any{"emulated": true},
		}, nil
	}

	if err := e.mailer.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}

	e.logger.Info("email sent", "to", msg.To, "subject", msg.Subject)
	return &Result{
		Output: map[string]any{
			"sent":    true,
			"to":      msg.To,
			"subject": msg.Subject,
		},
	}, nil
}

// renderTemplate подставляет значения входа вместо плейсхолдеров.
func renderTemplate(tmpl string, input any) string {
	if tmpl == "" {
		return ""
	}
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := placeholderRe.FindStringSubmatch(match)[1]
		value, ok := condition.ResolvePath(input, path)
		if !ok {
			return ""
		}
		return fmt.Sprintf("%v", value)
	})
}

// renderList рендерит каждый элемент, выбрасывая опустевшие.
func renderList(items []string, input any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if rendered := renderTemplate(item, input); rendered != "" {
			out = append(out, rendered)
		}
	}
	return out
}
