package codec

import (
	"log/slog"

	"github.com/andreyvit/dyncol"
)

// MergeMaps copies every entry of from into into, overwriting keys that into
// already has. The merge is shallow: a nested container in from replaces the
// one in into rather than being merged with it.
func MergeMaps(from, into *dyncol.Map) error {
	if from == nil || into == nil {
		logger := into.Context().Logger()
		if into == nil {
			logger = from.Context().Logger()
		}
		logger.Warn("codec: MergeMaps: map is nil", slog.Bool("from_nil", from == nil), slog.Bool("into_nil", into == nil))
		return dyncol.ErrNoValue
	}
	if dyncol.Equal(dyncol.CopyMap(from), dyncol.CopyMap(into)) {
		into.Context().Logger().Debug("codec: MergeMaps: maps are equal", slog.Int("len", into.Len()))
		return nil
	}
	for k, v := range from.All() {
		if err := into.Set(k, v); err != nil {
			into.Context().Logger().Error("codec: MergeMaps: set failed", slog.String("key", k), slog.Any("err", err))
			return err
		}
	}
	return nil
}
