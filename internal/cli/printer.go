// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/session"
)

// streamPrinter writes a streaming reply to a terminal as it grows. Only
// the new suffix is written on each change. Reasoning goes to its own
// writer so stdout stays pipeable.
type streamPrinter struct {
	out       io.Writer
	reasoning io.Writer

	content  string
	thinking string
}

func newStreamPrinter(out, reasoning io.Writer) *streamPrinter {
	return &streamPrinter{out: out, reasoning: reasoning}
}

// update prints what msg adds over the last update. Content that does not
// extend the printed text (a failure notice replacing a partial reply) is
// printed on a fresh line.
func (p *streamPrinter) update(msg model.Message) {
	if p.reasoning != nil && msg.ReasoningContent != p.thinking {
		if strings.HasPrefix(msg.ReasoningContent, p.thinking) {
			fmt.Fprint(p.reasoning, ReasoningStyle.Render(msg.ReasoningContent[len(p.thinking):]))
		}
		p.thinking = msg.ReasoningContent
	}

	if msg.Content == p.content {
		return
	}
	if strings.HasPrefix(msg.Content, p.content) {
		fmt.Fprint(p.out, msg.Content[len(p.content):])
	} else {
		fmt.Fprint(p.out, "\n"+msg.Content)
	}
	p.content = msg.Content
}

// printed returns the content written so far.
func (p *streamPrinter) printed() string {
	return p.content
}

// follow prints req's reply until it finishes. sub must have been taken
// before the request was sent. The final message is returned together with
// the request's error; an aborted request reports context.Canceled.
func follow(ctx context.Context, coord *session.Coordinator, sub *session.Subscription, req *session.Request, p *streamPrinter) (model.Message, error) {
	show := func() {
		if p == nil {
			return
		}
		if msg, ok := coord.Store().Get(req.SessionID, req.MessageID); ok {
			p.update(msg)
		}
	}

	for {
		select {
		case <-sub.Ready():
			for _, u := range sub.Drain() {
				if u.SessionID == req.SessionID {
					show()
					break
				}
			}
		case <-req.Done():
			show()
			return req.Result()
		case <-ctx.Done():
			coord.AbortRequest(req.SessionID)
			<-req.Done()
			show()
			msg, _ := req.Result()
			return msg, ctx.Err()
		}
	}
}
