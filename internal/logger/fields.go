package logger

import "context"

type logFieldsKey struct{}

// LogFields are request-scoped attributes added to every record logged with the context.
type LogFields struct {
	SessionID string
	Stage     string
	Component string
}

func GetLogFields(ctx context.Context) LogFields {
	if f, ok := ctx.Value(logFieldsKey{}).(LogFields); ok {
		return f
	}
	return LogFields{}
}

func WithSessionID(ctx context.Context, id string) context.Context {
	f := GetLogFields(ctx)
	f.SessionID = id
	return context.WithValue(ctx, logFieldsKey{}, f)
}

func WithStage(ctx context.Context, stage string) context.Context {
	f := GetLogFields(ctx)
	f.Stage = stage
	return context.WithValue(ctx, logFieldsKey{}, f)
}

func WithComponent(ctx context.Context, component string) context.Context {
	f := GetLogFields(ctx)
	f.Component = component
	return context.WithValue(ctx, logFieldsKey{}, f)
}
