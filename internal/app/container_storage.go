package app

import (
	"context"

	"mobile-home-delivery/internal/config"
	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/storage"
)

func newPhotoStore(ctx context.Context, cfg *config.Config, logger logx.Logger) (storage.Store, error) {
	st := cfg.Storage
	if st.Backend == "s3" {
		logger.Info("photo storage: s3",
			logx.String("bucket", st.Bucket),
			logx.String("region", st.Region),
		)
		s3, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:        st.Bucket,
			Region:        st.Region,
			Endpoint:      st.Endpoint,
			PublicBaseURL: st.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	}
	logger.Info("photo storage: disk", logx.String("dir", st.Dir))
	disk, err := storage.NewDiskStore(st.Dir, st.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	return disk, nil
}
