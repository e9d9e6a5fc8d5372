package validation

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/eorimag/internal/model"
)

func validSubmission() *model.Submission {
	return &model.Submission{
		ServiceKey:    "eori_ro",
		FullName:      "Popescu Andrei",
		Email:         "andrei@example.ro",
		Phone:         "0712345678",
		NationalID:    "1900101223344",
		SignatureData: "data:image/png;base64,AAAA",
		AcceptedTerms: true,
		IDFront:       &model.UploadedFile{Filename: "ci.jpg", Data: []byte("jpeg")},
	}
}

func TestValidateSubmission(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *model.Submission)
		want   []string
	}{
		{
			name:   "valid",
			mutate: func(s *model.Submission) {},
			want:   nil,
		},
		{
			name: "everything missing",
			mutate: func(s *model.Submission) {
				*s = model.Submission{}
			},
			want: []string{"service_key", "full_name", "email", "phone", "cnp_cui", "signature_data", "id_front", "accept_terms"},
		},
		{
			name: "terms not accepted",
			mutate: func(s *model.Submission) {
				s.AcceptedTerms = false
			},
			want: []string{"accept_terms"},
		},
		{
			name: "invalid email and empty phone",
			mutate: func(s *model.Submission) {
				s.Email = "not-an-email"
				s.Phone = ""
			},
			want: []string{"email", "phone"},
		},
		{
			name: "empty front document",
			mutate: func(s *model.Submission) {
				s.IDFront = &model.UploadedFile{Filename: "ci.jpg"}
			},
			want: []string{"id_front"},
		},
		{
			name: "unsupported front document type",
			mutate: func(s *model.Submission) {
				s.IDFront = &model.UploadedFile{Filename: "ci.exe", Data: []byte("MZ")}
			},
			want: []string{"id_front"},
		},
		{
			name: "optional fields are not required",
			mutate: func(s *model.Submission) {
				s.Company = ""
				s.Notes = ""
				s.IDBack = nil
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSubmission()
			tt.mutate(s)

			err := ValidateSubmission(s)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}

			var mfe *MissingFieldsError
			require.True(t, errors.As(err, &mfe), "unexpected error %v", err)
			assert.Equal(t, tt.want, mfe.Fields)
		})
	}
}

func TestIsAllowedDocument(t *testing.T) {
	assert.True(t, IsAllowedDocument("scan.PDF"))
	assert.True(t, IsAllowedDocument("front.jpeg"))
	assert.True(t, IsAllowedDocument("back.png"))
	assert.False(t, IsAllowedDocument("notes.docx"))
	assert.False(t, IsAllowedDocument("noext"))
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"on", "true", "1", "YES", " da "} {
		assert.True(t, IsTruthy(v), v)
	}
	for _, v := range []string{"", "off", "0", "false"} {
		assert.False(t, IsTruthy(v), v)
	}
}

func pngDataURL(t *testing.T) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 2))))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeSignature(t *testing.T) {
	valid := pngDataURL(t)

	data, err := DecodeSignature(valid)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Width)

	malformed := []string{
		"",
		"data:image/jpeg;base64,AAAA",
		"data:image/png;base64,!!!not-base64!!!",
		"data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("plain text")),
	}
	for _, in := range malformed {
		_, err := DecodeSignature(in)
		assert.ErrorIs(t, err, ErrMalformedSignature, "input %q", in)
	}
}
