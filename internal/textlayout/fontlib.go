/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"

	"gosubrender/internal/fontdb"
)

// FontLibrary stores loaded OpenType fonts mapped by family/weight/italic.
// Family names are matched case-insensitively, the way scripts spell them.
type FontLibrary struct {
	mu    sync.Mutex
	fonts map[fontKey]*opentype.Font
	// files caches parsed collections so faces of one .ttc share the data.
	files map[string]*opentype.Collection
}

type fontKey struct {
	family string
	weight int
	italic bool
}

func NewFontLibrary() *FontLibrary {
	return &FontLibrary{fonts: make(map[fontKey]*opentype.Font), files: make(map[string]*opentype.Collection)}
}

// LoadTTF loads a single-face font file under the given family/weight/italic.
func (fl *FontLibrary) LoadTTF(family string, weight int, italic bool, path string) error {
	return fl.LoadFace(family, weight, italic, path, 0)
}

// LoadFace loads face index of a font file; plain .ttf/.otf files hold one
// face at index 0.
func (fl *FontLibrary) LoadFace(family string, weight int, italic bool, path string, index int) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.fonts == nil {
		fl.fonts = make(map[fontKey]*opentype.Font)
		fl.files = make(map[string]*opentype.Collection)
	}
	coll, ok := fl.files[path]
	if !ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read font %s: %w", path, err)
		}
		coll, err = opentype.ParseCollection(data)
		if err != nil {
			return fmt.Errorf("parse font %s: %w", path, err)
		}
		fl.files[path] = coll
	}
	f, err := coll.Font(index)
	if err != nil {
		return fmt.Errorf("font %s #%d: %w", path, index, err)
	}
	fl.fonts[fontKey{family: strings.ToLower(family), weight: weight, italic: italic}] = f
	return nil
}

// FaceSource lists catalogued faces of a family; *fontdb.Catalog implements it.
type FaceSource interface {
	Faces(ctx context.Context, family string) ([]fontdb.Face, error)
}

// LoadCatalog loads every catalogued face of the given families. Families
// the catalog does not know are skipped. It returns the number of faces
// loaded.
func (fl *FontLibrary) LoadCatalog(ctx context.Context, src FaceSource, families ...string) (int, error) {
	n := 0
	for _, fam := range families {
		if fam == "" || fl.hasFamily(fam) {
			continue
		}
		faces, err := src.Faces(ctx, fam)
		if err != nil {
			return n, fmt.Errorf("catalog faces %q: %w", fam, err)
		}
		for _, f := range faces {
			if err := fl.LoadFace(fam, f.Weight, f.Italic, f.Path, f.Index); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// Families lists the loaded family names in sorted order.
func (fl *FontLibrary) Families() []string {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for k := range fl.fonts {
		if !seen[k.family] {
			seen[k.family] = true
			out = append(out, k.family)
		}
	}
	sort.Strings(out)
	return out
}

func (fl *FontLibrary) hasFamily(family string) bool {
	fam := strings.ToLower(family)
	fl.mu.Lock()
	defer fl.mu.Unlock()
	for k := range fl.fonts {
		if k.family == fam {
			return true
		}
	}
	return false
}

// find returns the exact face, or the same family with matching slant and
// the nearest weight, or any face of the family.
func (fl *FontLibrary) find(spec FontSpec) *opentype.Font {
	if fl == nil {
		return nil
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fam := strings.ToLower(spec.Family)
	if f, ok := fl.fonts[fontKey{family: fam, weight: spec.Weight, italic: spec.Italic}]; ok {
		return f
	}
	var best *opentype.Font
	bestScore := -1
	for k, f := range fl.fonts {
		if k.family != fam {
			continue
		}
		d := k.weight - spec.Weight
		if d < 0 {
			d = -d
		}
		score := d
		if k.italic != spec.Italic {
			score += 1000
		}
		if best == nil || score < bestScore {
			best, bestScore = f, score
		}
	}
	return best
}

// OTProvider resolves FontSpec using a FontLibrary and falls back to another
// Provider. It uses kerning as provided by opentype.Face and font.Drawer.
// Faces are cached per font and quarter-pixel size.
type OTProvider struct {
	Lib      *FontLibrary
	DPI      float64 // default 72 if zero
	Fallback Provider

	mu    sync.Mutex
	faces map[faceKey]cachedFace
}

type faceKey struct {
	font *opentype.Font
	size int
}

type cachedFace struct {
	face font.Face
	met  Metrics
}

func NewOTProvider(lib *FontLibrary, fallback Provider) *OTProvider {
	return &OTProvider{Lib: lib, Fallback: fallback}
}

// Has reports whether the library holds the requested family.
func (p *OTProvider) Has(spec FontSpec) bool { return p.Lib.find(spec) != nil }

func (p *OTProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	if spec.SizePx <= 0 {
		spec.SizePx = 12
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = 72
	}
	if f := p.Lib.find(spec); f != nil {
		key := faceKey{font: f, size: int(spec.SizePx*4 + 0.5)}
		p.mu.Lock()
		defer p.mu.Unlock()
		if c, ok := p.faces[key]; ok {
			return c.face, c.met
		}
		size := float64(key.size) / 4
		face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: dpi, Hinting: font.HintingFull})
		if err == nil {
			m := face.Metrics()
			c := cachedFace{face: face, met: Metrics{
				Ascent:  float32(m.Ascent.Round()),
				Descent: float32(m.Descent.Round()),
				LineGap: float32(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
				Size:    float32(size * dpi / 72),
			}}
			if p.faces == nil {
				p.faces = make(map[faceKey]cachedFace)
			}
			p.faces[key] = c
			return c.face, c.met
		}
	}
	fb := p.Fallback
	if fb == nil {
		fb = BasicProvider{}
	}
	return fb.Resolve(spec)
}
