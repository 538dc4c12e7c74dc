package gltf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func chunk(typ uint32, payload []byte) []byte {
	out := make([]byte, 8, 8+len(payload))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(out[4:], typ)
	return append(out, payload...)
}

func container(version uint32, chunks ...[]byte) []byte {
	body := bytes.Join(chunks, nil)
	out := make([]byte, 12, 12+len(body))
	binary.LittleEndian.PutUint32(out[0:], GLBMagic)
	binary.LittleEndian.PutUint32(out[4:], version)
	binary.LittleEndian.PutUint32(out[8:], uint32(12+len(body)))
	return append(out, body...)
}

func TestParseBinaryContainerSingleJSONChunk(t *testing.T) {
	content := `{"asset":{"version":"2.0"}}`
	data := container(2, chunk(GLBChunkJSON, []byte(content)))

	if !IsBinaryContainer(data) {
		t.Fatal("magic not detected")
	}
	c, err := ParseBinaryContainer(data)
	if err != nil {
		t.Fatalf("ParseBinaryContainer: %v", err)
	}
	if c.Content != content {
		t.Fatalf("content = %q, want %q", c.Content, content)
	}
	if c.Body != nil {
		t.Fatalf("body = %v, want nil", c.Body)
	}
}

func TestParseBinaryContainerSkipsUnknownChunk(t *testing.T) {
	bin := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	data := container(2,
		chunk(GLBChunkJSON, []byte(`{"asset":{"version":"2.0"}}`)),
		chunk(0x12345678, []byte{0xde, 0xad, 0xbe, 0xef, 0, 0}),
		chunk(GLBChunkBIN, bin),
	)

	c, err := ParseBinaryContainer(data)
	if err != nil {
		t.Fatalf("ParseBinaryContainer: %v", err)
	}
	if !bytes.Equal(c.Body, bin) {
		t.Fatalf("body = %v, want %v", c.Body, bin)
	}
}

func TestParseBinaryContainerErrors(t *testing.T) {
	bad := container(2, chunk(GLBChunkJSON, []byte(`{}`)))
	copy(bad, "nope")

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"magic", bad, ErrUnsupportedContainer},
		{"legacy", container(1, chunk(GLBChunkJSON, []byte(`{}`))), ErrLegacyVersion},
		{"no json", container(2, chunk(GLBChunkBIN, []byte{0, 0, 0, 0})), ErrMissingJSONChunk},
		{"short", []byte("glTF"), ErrUnsupportedContainer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseBinaryContainer(tt.data); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseBinaryContainerTruncatedChunk(t *testing.T) {
	data := container(2, chunk(GLBChunkJSON, []byte(`{"asset":{}}`)))
	binary.LittleEndian.PutUint32(data[12:], 1000)
	if _, err := ParseBinaryContainer(data); err == nil {
		t.Fatal("oversized chunk should fail")
	}
}

func TestEncodeBinaryContainerRoundTrip(t *testing.T) {
	content := []byte(`{"asset":{"version":"2.0"}}`) // 27 bytes, padded to 28
	bin := []byte{9, 8, 7}

	data := EncodeBinaryContainer(content, bin)
	if len(data)%4 != 0 {
		t.Fatalf("length %d is not 4-byte aligned", len(data))
	}
	if got := binary.LittleEndian.Uint32(data[8:]); int(got) != len(data) {
		t.Fatalf("header length = %d, want %d", got, len(data))
	}

	c, err := ParseBinaryContainer(data)
	if err != nil {
		t.Fatalf("ParseBinaryContainer: %v", err)
	}
	if c.Content != string(content)+" " {
		t.Fatalf("content = %q", c.Content)
	}
	if !bytes.Equal(c.Body, []byte{9, 8, 7, 0}) {
		t.Fatalf("body = %v", c.Body)
	}
	if doc, err := ParseDocument([]byte(c.Content)); err != nil || doc.Asset.Version != "2.0" {
		t.Fatalf("padded JSON does not decode: %v", err)
	}
}

func TestDocumentExtensions(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"asset": {"version": "2.0"},
		"extensionsUsed": ["KHR_lights_punctual"],
		"extensions": {"KHR_lights_punctual": {"lights": [{"type": "spot", "spot": {"outerConeAngle": 0.5}}]}}
	}`))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if !doc.ExtensionUsed(ExtLightsPunctual) || doc.ExtensionRequired(ExtLightsPunctual) {
		t.Fatal("extension lists not decoded")
	}

	var lights LightsPunctual
	ok, err := DecodeExtension(doc.Extensions, ExtLightsPunctual, &lights)
	if !ok || err != nil {
		t.Fatalf("DecodeExtension = %v, %v", ok, err)
	}
	if len(lights.Lights) != 1 || *lights.Lights[0].Spot.OuterConeAngle != 0.5 {
		t.Fatalf("lights = %+v", lights)
	}

	if ok, _ := DecodeExtension(doc.Extensions, ExtMaterialsUnlit, &struct{}{}); ok {
		t.Fatal("absent extension reported present")
	}

	doc.UseExtension(ExtMaterialsUnlit, true)
	doc.UseExtension(ExtMaterialsUnlit, true)
	if len(doc.ExtensionsUsed) != 2 || len(doc.ExtensionsRequired) != 1 {
		t.Fatalf("UseExtension duplicated entries: %v %v", doc.ExtensionsUsed, doc.ExtensionsRequired)
	}
}

func TestItemSize(t *testing.T) {
	for typ, want := range map[string]int{TypeScalar: 1, TypeVec3: 3, TypeMat2: 4, TypeMat4: 16, "VEC5": 0} {
		if got := ItemSize(typ); got != want {
			t.Errorf("ItemSize(%s) = %d, want %d", typ, got, want)
		}
	}
}
