package auth

import "context"

type ctxKey int

const usuarioKey ctxKey = iota

func WithUsuario(ctx context.Context, u Usuario) context.Context {
	return context.WithValue(ctx, usuarioKey, u)
}

func UsuarioFrom(ctx context.Context) (Usuario, bool) {
	u, ok := ctx.Value(usuarioKey).(Usuario)
	return u, ok
}
