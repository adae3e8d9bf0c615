package assemble

import "fmt"

// styleBlock renders the print stylesheet for the chosen theme. The
// pagination policy lives here: title page, table of contents, summary
// page and every chapter force a page break; lesson image blocks avoid
// internal breaks so a lesson's heading and opening content stay together.
func styleBlock(font FontStyle, backgroundHex string, pal Palette) string {
	css := fmt.Sprintf(`
        @page { size: A4; margin: 2.5cm 2cm; @bottom-center { content: 'Page ' counter(page); font-size: 10pt; color: #888; } }
        body { background-color: %s; line-height: 1.6; font-size: 12pt; color: %s; %s }
        h1, h2, h3, h4 { page-break-after: avoid; color: %s; %s }
        .title-page { text-align: center; page-break-after: always; display: flex; flex-direction: column; align-items: center; justify-content: center; height: 20cm; }
        .title-page h1 { font-size: 42pt; margin: 0; }
        .title-page h3 { font-size: 16pt; margin-top: 1cm; font-weight: normal; }
        .title-page img { max-width: 18cm; max-height: 18cm; object-fit: contain; }
        .toc-page { page-break-after: always; }
        .toc-page h2 { border-bottom: 2px solid %s; padding-bottom: 10px; }
        .toc-page ul { list-style-type: none; padding-left: 0; }
        .toc-module { font-size: 14pt; font-weight: bold; margin-bottom: 15px; }
        .toc-lessons { padding-left: 25px; margin-top: 10px; list-style-type: none; }
        .toc-lessons li { margin-bottom: 10px; font-size: 11pt; }
        .toc-page a { text-decoration: none; color: %s; }
        .summary-page { page-break-after: always; }
        .chapter { page-break-before: always; }
        .action-guide { page-break-before: always; }
        .lesson { margin-top: 30px; }
        .lesson-content { margin-top: 10px; text-align: justify; }
        .lesson-content p { margin-bottom: 1em; }
        .ai-image { text-align: center; margin: 2em 0; clear: both; page-break-inside: avoid; }
        .ai-image img { max-width: 100%%; height: auto; border-radius: 8px; page-break-inside: avoid; }
    `,
		backgroundHex, pal.Text, font.Body,
		pal.Heading, font.Headings,
		pal.TOCBorder,
		pal.TOCLink,
	)
	return "<style>" + font.Import + css + "</style>"
}
