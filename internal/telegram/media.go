package telegram

import "github.com/gotd/td/tg"

// attachmentsOf inspects message media and flags the attachment kinds it carries.
// Documents are split by their attributes; a document with no recognised
// attribute is a plain file. A link preview counts as its photo or document.
func attachmentsOf(media tg.MessageMediaClass) Attachments {
	var a Attachments

	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		_, a.Photo = m.GetPhoto()
	case *tg.MessageMediaPoll:
		a.Poll = true
	case *tg.MessageMediaDocument:
		if doc, ok := m.GetDocument(); ok {
			classifyDocument(doc, &a)
		}
	case *tg.MessageMediaWebPage:
		page, ok := m.Webpage.(*tg.WebPage)
		if !ok {
			// pending or empty previews carry nothing yet
			return a
		}
		if _, ok := page.GetPhoto(); ok {
			a.Photo = true
		} else if doc, ok := page.GetDocument(); ok {
			classifyDocument(doc, &a)
		}
	}

	return a
}

func classifyDocument(doc tg.DocumentClass, a *Attachments) {
	d, ok := doc.(*tg.Document)
	if !ok {
		return
	}

	var hasVideo, hasAudio, isVoice bool
	for _, attr := range d.Attributes {
		switch at := attr.(type) {
		case *tg.DocumentAttributeVideo:
			hasVideo = true
		case *tg.DocumentAttributeAudio:
			hasAudio = true
			isVoice = at.Voice
		case *tg.DocumentAttributeSticker:
			a.Sticker = true
		case *tg.DocumentAttributeAnimated:
			a.GIF = true
		}
	}

	// animated gifs and video stickers carry a video attribute too
	a.Video = hasVideo && !a.GIF && !a.Sticker
	a.Voice = hasAudio && isVoice
	a.Audio = hasAudio && !isVoice
	a.Document = !a.Video && !a.Voice && !a.Audio && !a.Sticker && !a.GIF
}
