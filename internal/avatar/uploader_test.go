package avatar_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/johndosdos/cove/internal/avatar"
	"github.com/johndosdos/cove/internal/avatar/mocks"
	"github.com/johndosdos/cove/internal/model"
	"github.com/johndosdos/cove/internal/objectstore"
)

var (
	pngData  = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	jpegData = append([]byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), make([]byte, 64)...)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type deps struct {
	source   *mocks.MockImageSource
	alerts   *mocks.MockAlerter
	objects  *mocks.MockObjectStore
	profiles *mocks.MockProfileStore
}

func newDeps(t *testing.T) deps {
	ctrl := gomock.NewController(t)
	return deps{
		source:   mocks.NewMockImageSource(ctrl),
		alerts:   mocks.NewMockAlerter(ctrl),
		objects:  mocks.NewMockObjectStore(ctrl),
		profiles: mocks.NewMockProfileStore(ctrl),
	}
}

func (d deps) uploader(self uuid.UUID, opts avatar.Options) *avatar.Uploader {
	return avatar.NewUploader(discardLogger(), d.objects, d.profiles, d.alerts, self, opts)
}

func (d deps) pick(t *testing.T, u *avatar.Uploader, img avatar.Image) {
	t.Helper()
	d.source.EXPECT().RequestLibraryAccess(gomock.Any()).Return(true, nil)
	d.source.EXPECT().ChooseImage(gomock.Any()).Return(img, false, nil)
	require.NoError(t, u.PickImage(context.Background(), d.source))
}

func TestUploader_PickImage(t *testing.T) {
	ctx := context.Background()

	t.Run("consent denied alerts and stores nothing", func(t *testing.T) {
		d := newDeps(t)
		u := d.uploader(uuid.New(), avatar.Options{})

		d.source.EXPECT().RequestLibraryAccess(gomock.Any()).Return(false, nil)
		d.alerts.EXPECT().Alert(gomock.Any(), avatar.AlertConsentRequired)

		err := u.PickImage(ctx, d.source)
		require.ErrorIs(t, err, avatar.ErrConsentDenied)
		_, ok := u.Selected()
		require.False(t, ok)
	})

	t.Run("canceled picker keeps the previous selection", func(t *testing.T) {
		d := newDeps(t)
		u := d.uploader(uuid.New(), avatar.Options{})
		d.pick(t, u, avatar.Image{Name: "first.png", Data: pngData})

		d.source.EXPECT().RequestLibraryAccess(gomock.Any()).Return(true, nil)
		d.source.EXPECT().ChooseImage(gomock.Any()).Return(avatar.Image{}, true, nil)
		require.NoError(t, u.PickImage(ctx, d.source))

		img, ok := u.Selected()
		require.True(t, ok)
		require.Equal(t, "first.png", img.Name)
	})

	t.Run("picker error", func(t *testing.T) {
		d := newDeps(t)
		u := d.uploader(uuid.New(), avatar.Options{})
		boom := errors.New("picker crashed")

		d.source.EXPECT().RequestLibraryAccess(gomock.Any()).Return(true, nil)
		d.source.EXPECT().ChooseImage(gomock.Any()).Return(avatar.Image{}, false, boom)

		require.ErrorIs(t, u.PickImage(ctx, d.source), boom)
		_, ok := u.Selected()
		require.False(t, ok)
	})
}

func TestUploader_UploadImage(t *testing.T) {
	ctx := context.Background()
	self := uuid.New()
	key := avatar.ObjectKey(self)

	t.Run("first upload", func(t *testing.T) {
		d := newDeps(t)
		u := d.uploader(self, avatar.Options{})
		d.pick(t, u, avatar.Image{Name: "me.png", Data: pngData})

		var stored string
		gomock.InOrder(
			d.profiles.EXPECT().GetProfile(gomock.Any(), self).Return(model.UserProfile{ID: self}, nil),
			d.objects.EXPECT().Get(gomock.Any(), key).Return(nil, "", objectstore.ErrNotFound),
			d.objects.EXPECT().Put(gomock.Any(), key, pngData, "image/png").Return(nil),
			d.objects.EXPECT().PublicURL(gomock.Any(), key).Return("http://localhost/media/"+key, nil),
			d.profiles.EXPECT().UpdateProfilePicture(gomock.Any(), self, gomock.Any()).
				Do(func(_ context.Context, _ uuid.UUID, url string) { stored = url }).
				Return(nil),
			d.alerts.EXPECT().Alert(gomock.Any(), avatar.AlertUploaded),
		)

		url, err := u.UploadImage(ctx)
		require.NoError(t, err)
		require.Equal(t, stored, url)
		require.True(t, strings.HasPrefix(url, "http://localhost/media/"+key+"?v="))
	})

	t.Run("reupload changes the version", func(t *testing.T) {
		urls := make([]string, 0, 2)
		for _, data := range [][]byte{pngData, jpegData} {
			d := newDeps(t)
			u := d.uploader(self, avatar.Options{})
			d.pick(t, u, avatar.Image{Data: data})

			d.profiles.EXPECT().GetProfile(gomock.Any(), self).Return(model.UserProfile{ID: self}, nil)
			d.objects.EXPECT().Get(gomock.Any(), key).Return(pngData, "image/png", nil)
			d.objects.EXPECT().Put(gomock.Any(), key, data, gomock.Any()).Return(nil)
			d.objects.EXPECT().PublicURL(gomock.Any(), key).Return("/media/"+key, nil)
			d.profiles.EXPECT().UpdateProfilePicture(gomock.Any(), self, gomock.Any()).Return(nil)
			d.alerts.EXPECT().Alert(gomock.Any(), avatar.AlertUploaded)

			url, err := u.UploadImage(ctx)
			require.NoError(t, err)
			urls = append(urls, url)
		}
		require.NotEqual(t, urls[0], urls[1])
	})

	t.Run("profile update failure restores the previous picture", func(t *testing.T) {
		d := newDeps(t)
		u := d.uploader(self, avatar.Options{})
		d.pick(t, u, avatar.Image{Data: pngData})

		gomock.InOrder(
			d.profiles.EXPECT().GetProfile(gomock.Any(), self).Return(model.UserProfile{ID: self}, nil),
			d.objects.EXPECT().Get(gomock.Any(), key).Return(jpegData, "image/jpeg", nil),
			d.objects.EXPECT().Put(gomock.Any(), key, pngData, "image/png").Return(nil),
			d.objects.EXPECT().PublicURL(gomock.Any(), key).Return("/media/"+key, nil),
			d.profiles.EXPECT().UpdateProfilePicture(gomock.Any(), self, gomock.Any()).Return(errors.New("db down")),
			d.objects.EXPECT().Put(gomock.Any(), key, jpegData, "image/jpeg").Return(nil),
			d.alerts.EXPECT().Alert(gomock.Any(), avatar.AlertUploadFailed),
		)

		_, err := u.UploadImage(ctx)
		require.Error(t, err)
	})

	t.Run("profile update failure removes a first picture", func(t *testing.T) {
		d := newDeps(t)
		u := d.uploader(self, avatar.Options{})
		d.pick(t, u, avatar.Image{Data: pngData})

		gomock.InOrder(
			d.profiles.EXPECT().GetProfile(gomock.Any(), self).Return(model.UserProfile{ID: self}, nil),
			d.objects.EXPECT().Get(gomock.Any(), key).Return(nil, "", objectstore.ErrNotFound),
			d.objects.EXPECT().Put(gomock.Any(), key, pngData, "image/png").Return(nil),
			d.objects.EXPECT().PublicURL(gomock.Any(), key).Return("/media/"+key, nil),
			d.profiles.EXPECT().UpdateProfilePicture(gomock.Any(), self, gomock.Any()).Return(errors.New("db down")),
			d.objects.EXPECT().Delete(gomock.Any(), key).Return(nil),
			d.alerts.EXPECT().Alert(gomock.Any(), avatar.AlertUploadFailed),
		)

		_, err := u.UploadImage(ctx)
		require.Error(t, err)
	})

	t.Run("storage failure leaves the profile alone", func(t *testing.T) {
		d := newDeps(t)
		u := d.uploader(self, avatar.Options{})
		d.pick(t, u, avatar.Image{Data: pngData})

		d.profiles.EXPECT().GetProfile(gomock.Any(), self).Return(model.UserProfile{ID: self}, nil)
		d.objects.EXPECT().Get(gomock.Any(), key).Return(nil, "", objectstore.ErrNotFound)
		d.objects.EXPECT().Put(gomock.Any(), key, pngData, "image/png").Return(errors.New("bucket full"))
		d.alerts.EXPECT().Alert(gomock.Any(), avatar.AlertUploadFailed)

		_, err := u.UploadImage(ctx)
		require.Error(t, err)
	})

	t.Run("rejected before touching storage", func(t *testing.T) {
		tests := []struct {
			name    string
			data    []byte
			maxSize int64
			wantErr error
		}{
			{"not an image", []byte("just some text"), 0, avatar.ErrNotImage},
			{"too large", pngData, 16, avatar.ErrTooLarge},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				d := newDeps(t)
				u := d.uploader(self, avatar.Options{MaxBytes: tt.maxSize})
				d.pick(t, u, avatar.Image{Data: tt.data})

				d.alerts.EXPECT().Alert(gomock.Any(), avatar.AlertUploadFailed)

				_, err := u.UploadImage(ctx)
				require.ErrorIs(t, err, tt.wantErr)
			})
		}
	})

	t.Run("no-ops without alert", func(t *testing.T) {
		d := newDeps(t)

		_, err := d.uploader(self, avatar.Options{}).UploadImage(ctx)
		require.ErrorIs(t, err, avatar.ErrNoImage)

		anonymous := d.uploader(uuid.Nil, avatar.Options{})
		d.pick(t, anonymous, avatar.Image{Data: pngData})
		_, err = anonymous.UploadImage(ctx)
		require.ErrorIs(t, err, avatar.ErrNotAuthenticated)
	})
}

func TestUploader_FailedUpdateKeepsStoredPicture(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	self := uuid.New()
	key := avatar.ObjectKey(self)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	objects := objectstore.NewBadgerStore(db, "http://localhost:8080")
	req.NoError(objects.Put(ctx, key, jpegData, "image/jpeg"))

	d := newDeps(t)
	u := avatar.NewUploader(discardLogger(), objects, d.profiles, d.alerts, self, avatar.Options{})
	d.pick(t, u, avatar.Image{Data: pngData})

	d.profiles.EXPECT().GetProfile(gomock.Any(), self).Return(model.UserProfile{ID: self}, nil)
	d.profiles.EXPECT().UpdateProfilePicture(gomock.Any(), self, gomock.Any()).Return(errors.New("db down"))
	d.alerts.EXPECT().Alert(gomock.Any(), avatar.AlertUploadFailed)

	_, err = u.UploadImage(ctx)
	req.Error(err)

	data, contentType, err := objects.Get(ctx, key)
	req.NoError(err)
	req.Equal(jpegData, data)
	req.Equal("image/jpeg", contentType)
}
