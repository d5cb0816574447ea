package answer

import "context"

// MockGenerator is the development provider: it echoes the question in a
// canned reply with a fixed 70/20/10 layer split. It never fails, which
// makes it useful both locally and as the baseline in tests.
type MockGenerator struct{}

// Generate returns the canned draft for req.
func (MockGenerator) Generate(_ context.Context, req Request) (Draft, error) {
	return Draft{
		Text:         "（Mock）已收到你的問題：" + req.Question + "。目前為開發環境回覆。",
		Source:       "mock",
		MainPct:      70,
		SecondaryPct: 20,
		ReferencePct: 10,
		Followups:    SuggestFollowups(req.Question),
	}, nil
}
