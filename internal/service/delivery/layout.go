package delivery

// htmlLayout is the branded broadcast and sequence layout. body_html and
// greeting_html arrive pre-escaped; every other variable goes through the
// escape filter.
const htmlLayout = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>{{ subject | escape }}</title>
</head>
<body style="margin: 0; padding: 0; background-color: #E1EAF2; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;">
{%- if preheader != "" %}
  <div style="display: none; max-height: 0; overflow: hidden; mso-hide: all;">{{ preheader | escape }}</div>
{%- endif %}
  <table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="background-color: #E1EAF2;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="480" cellpadding="0" cellspacing="0" style="max-width: 480px; width: 100%;">
          <tr>
            <td align="center" style="padding-bottom: 32px;">
              <img src="{{ logo_url | escape }}" alt="Rijksuitgaven" width="220" style="display: block; width: 220px; height: auto;" />
            </td>
          </tr>
          <tr>
            <td style="background-color: #ffffff; border-radius: 8px; padding: 40px 36px;">
              <table role="presentation" width="100%" cellpadding="0" cellspacing="0">
                <tr>
                  <td style="font-size: 22px; font-weight: 700; color: #0E3261; text-align: center; padding-bottom: 16px;">
                    {{ heading | escape }}
                  </td>
                </tr>
                <tr>
                  <td style="font-size: 15px; line-height: 24px; color: #4a4a4a; padding-bottom: 24px;">
                    {{ greeting_html }}<br /><br />
                    {{ body_html }}
                  </td>
                </tr>
{%- if cta_text != "" and cta_url != "" %}
                <tr>
                  <td align="center" style="padding-bottom: 24px;">
                    <table role="presentation" cellpadding="0" cellspacing="0">
                      <tr>
                        <td style="background-color: #D4286B; border-radius: 6px;">
                          <a href="{{ cta_url | escape }}" target="_blank" style="display: inline-block; padding: 14px 48px; font-size: 16px; font-weight: 600; color: #ffffff; text-decoration: none; border-radius: 6px;">
                            {{ cta_text | escape }}
                          </a>
                        </td>
                      </tr>
                    </table>
                  </td>
                </tr>
{%- endif %}
                <tr>
                  <td style="padding-bottom: 20px;">
                    <table role="presentation" width="100%" cellpadding="0" cellspacing="0">
                      <tr><td style="border-top: 1px solid #eeeeee;"></td></tr>
                    </table>
                  </td>
                </tr>
                <tr>
                  <td style="font-size: 13px; line-height: 20px; color: #8a8a8a; text-align: center;">
                    Vragen? Neem contact op met <a href="mailto:{{ contact_email | escape }}" style="color: #436FA3; text-decoration: none;">ons team</a>.
                  </td>
                </tr>
              </table>
            </td>
          </tr>
          <tr>
            <td style="padding-top: 24px; text-align: center;">
              <table role="presentation" width="100%" cellpadding="0" cellspacing="0">
                <tr>
                  <td style="font-size: 13px; line-height: 20px; color: #8a8a8a; text-align: center;">
                    <a href="{{ site_url | escape }}" style="color: #436FA3; text-decoration: none; font-weight: 600;">{{ brand | escape }}</a>
                  </td>
                </tr>
                <tr>
                  <td style="font-size: 12px; line-height: 18px; color: #8a8a8a; text-align: center; padding-top: 8px;">
                    Het Maven Collectief<br />
                    KvK: 96257008<br />
                    <a href="mailto:{{ contact_email | escape }}" style="color: #436FA3; text-decoration: none;">{{ contact_email | escape }}</a>
                  </td>
                </tr>
                <tr>
                  <td style="font-size: 12px; line-height: 18px; color: #8a8a8a; text-align: center; padding-top: 12px;">
                    <a href="{{ unsubscribe_url | escape }}" style="color: #8a8a8a; text-decoration: underline;">Afmelden</a>
                    &nbsp;&middot;&nbsp;
                    <a href="{{ preferences_url | escape }}" style="color: #8a8a8a; text-decoration: underline;">Voorkeuren</a>
                  </td>
                </tr>
              </table>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`

// textLayout is the plain-text alternative. Liquid output here is not
// escaped.
const textLayout = `{% if preheader != "" %}{{ preheader }}

{% endif %}{{ heading }}

{{ greeting }}

{{ body }}
{%- if cta_text != "" and cta_url != "" %}

{{ cta_text }}: {{ cta_url }}
{%- endif %}

--
{{ brand }}
Het Maven Collectief
KvK: 96257008
{{ contact_email }}

Afmelden: {{ unsubscribe_url }}
Voorkeuren: {{ preferences_url }}
`
