package mailer

import (
	"fmt"
	"mime"
	"strings"
	"time"

	"bugtrack/backend/internal/domain"
)

// buildMessage 把队列邮件组装成 RFC 5322 报文。
//
// 元数据中的额外头（Message-ID、In-Reply-To 等）按入队顺序写出，
// 主题和发件人显示名按邮件字符集做 Q 编码。
func buildMessage(email *domain.QueuedEmail, fromAddress, fromName string) string {
	charset := email.Metadata.Charset
	if charset == "" {
		charset = "utf-8"
	}

	var b strings.Builder
	writeHeader := func(key, value string) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	from := fromAddress
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode(charset, fromName), fromAddress)
	}
	writeHeader("From", from)
	writeHeader("To", email.Recipient)
	writeHeader("Subject", mime.QEncoding.Encode(charset, email.Subject))
	writeHeader("Date", email.SubmittedAt.Format(time.RFC1123Z))

	for _, h := range email.Metadata.Headers {
		writeHeader(h.Key, h.Value)
	}

	if p := email.Metadata.Priority; p > 0 {
		writeHeader("X-Priority", fmt.Sprintf("%d", p))
	}

	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", fmt.Sprintf("text/plain; charset=%q", charset))
	writeHeader("Content-Transfer-Encoding", "8bit")

	b.WriteString("\r\n")
	// 行首点号转义由 DATA 写入器负责，这里只规整换行
	b.WriteString(strings.ReplaceAll(email.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.String()
}
