package settings

import (
	"encoding/json"
	"strings"
)

// Settings keys that have a typed shape.
const (
	KeyHero     = "hero"
	KeyFooter   = "footer"
	KeyContacts = "contacts"
	KeyFeatures = "features"
	KeyAbout    = "about"
	KeyGallery  = "gallery"

	// Flat keys written by older admin clients. They win over the hero object,
	// so Values writes them alongside it.
	KeyHeroTitle    = "heroTitle"
	KeyHeroSubtitle = "heroSubtitle"
)

type Hero struct {
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle"`
	Image      string `json:"image"`
	ButtonText string `json:"buttonText"`
}

type Footer struct {
	Text      string `json:"text"`
	Copyright string `json:"copyright"`
}

type Contacts struct {
	Phone    string `json:"phone"`
	WhatsApp string `json:"whatsapp"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	Telegram string `json:"telegram"`
	Hours    string `json:"hours"`
}

// BookingPhone is the number used for messenger deep links.
func (c Contacts) BookingPhone() string {
	if strings.TrimSpace(c.WhatsApp) != "" {
		return c.WhatsApp
	}
	return c.Phone
}

type Feature struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type About struct {
	Title string `json:"title"`
	// Body is markdown.
	Body  string `json:"body"`
	Image string `json:"image"`
}

// Content is the typed view of the public site copy.
type Content struct {
	Hero     Hero
	Footer   Footer
	Contacts Contacts
	Features []Feature
	About    About
	Gallery  []string
}

func DefaultContent() Content {
	return Content{
		Hero: Hero{
			Title:      "Уютные домики на природе",
			Subtitle:   "Отдых вдали от городской суеты: лес, озеро и тишина",
			Image:      "/static/img/hero.jpg",
			ButtonText: "Выбрать домик",
		},
		Footer: Footer{
			Text:      "Домики для отдыха круглый год",
			Copyright: "Все права защищены",
		},
		Contacts: Contacts{
			Phone:   "+7 900 000-00-00",
			Email:   "info@example.com",
			Address: "Ленинградская область",
			Hours:   "Ежедневно с 9:00 до 21:00",
		},
		Features: []Feature{
			{Icon: "tree", Title: "Природа вокруг", Description: "Домики стоят в лесу, до озера пять минут пешком"},
			{Icon: "fire", Title: "Баня и мангал", Description: "Всё для отдыха уже есть на участке"},
			{Icon: "wifi", Title: "Связь", Description: "Wi-Fi в каждом домике"},
		},
		About: About{
			Title: "О нас",
			Body:  "Мы сдаём домики для спокойного отдыха на природе.",
		},
		Gallery: []string{},
	}
}

// DecodeContent builds Content from raw settings values. A key that is
// missing or does not decode keeps its default; hero and footer fall back
// per field. A stored features list or about body is used as is, even empty.
func DecodeContent(values map[string]json.RawMessage) Content {
	c := DefaultContent()

	var hero Hero
	if decode(values, KeyHero, &hero) {
		c.Hero = Hero{
			Title:      firstNonEmpty(hero.Title, c.Hero.Title),
			Subtitle:   firstNonEmpty(hero.Subtitle, c.Hero.Subtitle),
			Image:      firstNonEmpty(hero.Image, c.Hero.Image),
			ButtonText: firstNonEmpty(hero.ButtonText, c.Hero.ButtonText),
		}
	}
	var flat string
	if decode(values, KeyHeroTitle, &flat) && strings.TrimSpace(flat) != "" {
		c.Hero.Title = flat
	}
	flat = ""
	if decode(values, KeyHeroSubtitle, &flat) && strings.TrimSpace(flat) != "" {
		c.Hero.Subtitle = flat
	}

	var footer Footer
	if decode(values, KeyFooter, &footer) {
		c.Footer = Footer{
			Text:      firstNonEmpty(footer.Text, c.Footer.Text),
			Copyright: firstNonEmpty(footer.Copyright, c.Footer.Copyright),
		}
	}

	var contacts Contacts
	if decode(values, KeyContacts, &contacts) {
		c.Contacts = contacts
	}

	var features []Feature
	if decode(values, KeyFeatures, &features) {
		c.Features = features
		if c.Features == nil {
			c.Features = []Feature{}
		}
	}

	var about About
	if decode(values, KeyAbout, &about) {
		c.About = About{
			Title: firstNonEmpty(about.Title, c.About.Title),
			Body:  about.Body,
			Image: about.Image,
		}
	}

	var gallery []string
	if decode(values, KeyGallery, &gallery) {
		c.Gallery = cleanList(gallery)
	}

	return c
}

// Values is the inverse of DecodeContent for the typed keys.
func (c Content) Values() map[string]interface{} {
	features := c.Features
	if features == nil {
		features = []Feature{}
	}
	return map[string]interface{}{
		KeyHero:         c.Hero,
		KeyHeroTitle:    c.Hero.Title,
		KeyHeroSubtitle: c.Hero.Subtitle,
		KeyFooter:       c.Footer,
		KeyContacts:     c.Contacts,
		KeyFeatures:     features,
		KeyAbout:        c.About,
		KeyGallery:      cleanList(c.Gallery),
	}
}

func decode(values map[string]json.RawMessage, key string, dst interface{}) bool {
	raw, ok := values[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func firstNonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
