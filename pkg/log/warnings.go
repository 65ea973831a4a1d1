package log

import (
	"github.com/rs/zerolog"

	oerrors "github.com/otulearn/otulearn/pkg/errors"
)

// RouteWarningsToZerolog installs a warning handler that emits otulearn
// warnings (ConvergenceWarning, FeatureSelectionWarning, ...) as structured
// zerolog events. Warning types implementing zerolog.LogObjectMarshaler are
// embedded as objects; anything else is logged through the error field.
func RouteWarningsToZerolog(zl zerolog.Logger) {
	oerrors.SetZerologWarnFunc(func(w error) {
		ev := zl.Warn()
		if obj, ok := w.(zerolog.LogObjectMarshaler); ok {
			ev.EmbedObject(obj).Msg("warning")
			return
		}
		ev.Err(w).Msg("warning")
	})
}

// ResetWarningRoute removes any installed zerolog warning route, restoring
// the plain warning handler in pkg/errors.
func ResetWarningRoute() {
	oerrors.SetZerologWarnFunc(nil)
}
