package session

import "context"

type contextKey struct{}

// NewContext はセッション状態を格納したcontextを返す。
func NewContext(ctx context.Context, state State) context.Context {
	return context.WithValue(ctx, contextKey{}, state)
}

// FromContext はcontextからセッション状態を取り出す。未設定の場合はUndeterminedを返す。
func FromContext(ctx context.Context) State {
	if state, ok := ctx.Value(contextKey{}).(State); ok {
		return state
	}
	return State{}
}
